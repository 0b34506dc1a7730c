package ontology

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDoc = `{
  "@context": {
    "rdfs": "http://www.w3.org/2000/01/rdf-schema#",
    "owl": "http://www.w3.org/2002/07/owl#"
  },
  "@graph": [
    {
      "@id": "http://purl.obolibrary.org/obo/DOID_4",
      "@type": "owl:Class",
      "rdfs:label": "disease"
    },
    {
      "@id": "http://purl.obolibrary.org/obo/DOID_1781",
      "@type": "owl:Class",
      "rdfs:label": "thyroid cancer",
      "rdfs:subClassOf": {"@id": "http://purl.obolibrary.org/obo/DOID_4"}
    }
  ]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestParseDocument(t *testing.T) {
	statements, err := ParseDocument([]byte(testDoc))
	require.NoError(t, err)

	var labels, subclasses, types int
	for _, s := range statements {
		switch s.Predicate {
		case RDFSLabel:
			labels++
			assert.True(t, s.IsLiteral, "labels must be literals")
		case RDFSSubClassOf:
			subclasses++
			assert.False(t, s.IsLiteral, "subClassOf objects must be IRIs")
			assert.Equal(t, "http://purl.obolibrary.org/obo/DOID_4", s.Object)
		case RDFType:
			types++
			assert.Equal(t, OWLClass, s.Object)
		}
	}
	assert.Equal(t, 2, labels)
	assert.Equal(t, 1, subclasses)
	assert.Equal(t, 2, types)
}

func TestParseDocumentInvalid(t *testing.T) {
	_, err := ParseDocument([]byte("not json at all"))
	assert.Error(t, err)
}

func TestLoadRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(testDoc))
	}))
	t.Cleanup(srv.Close)

	l := NewLoader(5*time.Second, 3, testLogger())
	l.backoff = time.Millisecond

	statements, err := l.Load(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	assert.NotEmpty(t, statements)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoadExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	l := NewLoader(5*time.Second, 2, testLogger())
	l.backoff = time.Millisecond

	_, err := l.Load(context.Background(), Source{URL: srv.URL})
	assert.ErrorIs(t, err, ErrSourceLoadFailed)
}

func TestLoadLocalFile(t *testing.T) {
	path := t.TempDir() + "/onto.jsonld"
	require.NoError(t, os.WriteFile(path, []byte(testDoc), 0o644))

	l := NewLoader(time.Second, 0, testLogger())
	statements, err := l.Load(context.Background(), Source{URL: path})
	require.NoError(t, err)
	assert.NotEmpty(t, statements)
}
