package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/hazyhaar/dommirror/addon"
)

const hello = "Hello, ゼロ!"

func TestReadResource(t *testing.T) {
	pkg := addon.New("demo", fstest.MapFS{
		"main.html": {Data: []byte("<button id=\"b1\">Go</button>")},
	})
	r := New(WithPackage(pkg))

	got, err := r.Read(context.Background(), pkg.URL("main.html"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != `<button id="b1">Go</button>` {
		t.Errorf("got %q", got)
	}
	if err := r.Probe(pkg.URL("main.html")); err != nil {
		t.Errorf("Probe: %v", err)
	}
}

func TestReadNotFound(t *testing.T) {
	pkg := addon.New("demo", fstest.MapFS{})
	r := New(WithPackage(pkg))
	uri := pkg.URL("missing.html")

	_, err := r.Read(context.Background(), uri)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	var re *ReadError
	if !errors.As(err, &re) {
		t.Fatalf("want *ReadError, got %T", err)
	}
	if re.URI != uri || re.Code != CodeNotFound {
		t.Errorf("got uri=%q code=%d", re.URI, re.Code)
	}
	if !strings.HasPrefix(err.Error(), "failed to read: '"+uri+"' (error code: 2)") {
		t.Errorf("message: %q", err.Error())
	}
	if err := r.Probe(uri); !errors.Is(err, ErrNotFound) {
		t.Errorf("Probe: want ErrNotFound, got %v", err)
	}
}

func TestReadForeignPackage(t *testing.T) {
	r := New(WithPackage(addon.New("demo", fstest.MapFS{})))
	other := addon.New("other", fstest.MapFS{"a.html": {Data: []byte("x")}})
	if _, err := r.Read(context.Background(), other.URL("a.html")); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestReadBlank(t *testing.T) {
	got, err := New().Read(context.Background(), BlankURI)
	if err != nil || got != "" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestReadUnknownScheme(t *testing.T) {
	_, err := New().Read(context.Background(), "gopher://example.org/")
	var re *ReadError
	if !errors.As(err, &re) || re.Code != CodeUnknownScheme {
		t.Errorf("want CodeUnknownScheme, got %v", err)
	}
}

func TestReadFileCharset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte(hello), 0o644); err != nil {
		t.Fatal(err)
	}
	uri := "file://" + filepath.ToSlash(path)

	tests := []struct {
		charset string
		want    string
	}{
		{"", hello},
		{"UTF-8", hello},
		{"ISO-8859-1", "Hello, \u00e3\u201a\u00bc\u00e3\u0192\u00ad!"},
	}
	for _, tt := range tests {
		t.Run(tt.charset, func(t *testing.T) {
			got, err := New(WithCharset(tt.charset)).Read(context.Background(), uri)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	_, err := New(WithCharset("klingon")).Read(context.Background(), uri)
	var re *ReadError
	if !errors.As(err, &re) || re.Code != CodeCharset {
		t.Errorf("bad charset: got %v", err)
	}
}

func TestReadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Write([]byte("<p>ok</p>"))
		case "/boom":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := New(WithClient(srv.Client()))
	got, err := r.Read(context.Background(), srv.URL+"/page")
	if err != nil || got != "<p>ok</p>" {
		t.Fatalf("page: got %q, %v", got, err)
	}
	if _, err := r.Read(context.Background(), srv.URL+"/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("404: want ErrNotFound, got %v", err)
	}
	_, err = r.Read(context.Background(), srv.URL+"/boom")
	var re *ReadError
	if !errors.As(err, &re) || re.Code != CodeBadStatus {
		t.Errorf("500: want CodeBadStatus, got %v", err)
	}
}
