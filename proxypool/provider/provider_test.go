package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIProviderFetch(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"ip":"1.1.1.1","port":8080}
{"ip":"2.2.2.2","port":"3128","username":"alice","password":"s3cret"}
not json at all
{"ip":"","port":80}
{"ip":"3.3.3.3","port":"eighty"}
`))
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, 5*time.Second)
	batch := p.Fetch(context.Background(), "us", "http", 5)

	require.Len(t, batch, 2)
	assert.Equal(t, "1.1.1.1", batch[0].Host)
	assert.Equal(t, 8080, batch[0].Port)
	assert.Equal(t, "2.2.2.2", batch[1].Host)
	assert.Equal(t, 3128, batch[1].Port)
	assert.Equal(t, "alice", batch[1].Username)
	assert.Equal(t, "s3cret", batch[1].Password)

	assert.Equal(t, "/random/us", gotPath)
	assert.Equal(t, "number=5&protocol=http&type=json", gotQuery)
}

func TestAPIProviderCapsBatchSize(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, 5*time.Second)
	p.Fetch(context.Background(), "us", "http", 50)

	// The API never accepts more than 10 per call.
	assert.Equal(t, "number=10&protocol=http&type=json", gotQuery)
	assert.Equal(t, 10, p.MaxBatch())
}

func TestAPIProviderNonOKYieldsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewAPIProvider(srv.URL, 5*time.Second)
	assert.Empty(t, p.Fetch(context.Background(), "us", "http", 5))
}

func TestAPIProviderUnreachableYieldsEmptyBatch(t *testing.T) {
	p := NewAPIProvider("http://127.0.0.1:1", 500*time.Millisecond)
	assert.Empty(t, p.Fetch(context.Background(), "us", "http", 5))
}

func TestScrapeProviderFetch(t *testing.T) {
	page := `<html><body><table><tbody>
<tr><td><a>4.4.4.4</a></td><td><a>8080</a></td></tr>
<tr><td><a>5.5.5.5</a></td><td><a>3128</a></td></tr>
<tr><td><a></a></td><td><a>80</a></td></tr>
<tr><td><a>6.6.6.6</a></td><td><a>oops</a></td></tr>
</tbody></table></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewScrapeProvider(srv.URL, 5*time.Second)
	batch := s.Fetch(context.Background(), "us", "http", 10)

	require.Len(t, batch, 2)
	assert.Equal(t, "4.4.4.4", batch[0].Host)
	assert.Equal(t, 8080, batch[0].Port)
	assert.Equal(t, "5.5.5.5", batch[1].Host)
}

func TestScrapeProviderRespectsLimit(t *testing.T) {
	page := `<html><body><table><tbody>
<tr><td><a>4.4.4.4</a></td><td><a>8080</a></td></tr>
<tr><td><a>5.5.5.5</a></td><td><a>3128</a></td></tr>
<tr><td><a>6.6.6.6</a></td><td><a>8000</a></td></tr>
</tbody></table></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewScrapeProvider(srv.URL, 5*time.Second)
	assert.Len(t, s.Fetch(context.Background(), "us", "http", 2), 2)
}
