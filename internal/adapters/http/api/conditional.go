package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/okian/demonlist/internal/domain/coherence"
	"github.com/okian/demonlist/pkg/metrics"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// Response descriptors. Each names the classes its body is derived from
// and the parameters that select it.

func demonListDesc(offset, limit int) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.Entries},
		Params:  []string{"demons", strconv.Itoa(offset), strconv.Itoa(limit)},
	}
}

func demonDesc(id int64) coherence.Descriptor {
	return coherence.Descriptor{Classes: []coherence.Class{coherence.Entries}, Params: []string{"demon", itoa(id)}}
}

func demonAtDesc(position int) coherence.Descriptor {
	return coherence.Descriptor{Classes: []coherence.Class{coherence.Entries}, Params: []string{"demon_at", strconv.Itoa(position)}}
}

func listInfoDesc() coherence.Descriptor {
	return coherence.Descriptor{Classes: []coherence.Class{coherence.Entries}, Params: []string{"list_information"}}
}

func playerListDesc(prefix string, offset, limit int) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.Players},
		Params:  []string{"players", prefix, strconv.Itoa(offset), strconv.Itoa(limit)},
	}
}

// playerDesc covers the profile, its score and its approved records. The
// score moves with the order, so Entries is part of it. Other players
// registering does not touch it.
func playerDesc(id int64) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.PlayerClass(id), coherence.Entries},
		Params:  []string{"player", itoa(id)},
	}
}

func rankingDesc(offset, limit int) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.Rankings, coherence.Entries},
		Params:  []string{"ranking", strconv.Itoa(offset), strconv.Itoa(limit)},
	}
}

func recordListDesc(visibility string, params ...string) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.Records},
		Params:  append([]string{"records", visibility}, params...),
	}
}

func recordDesc(id int64, visibility string) coherence.Descriptor {
	return coherence.Descriptor{Classes: []coherence.Class{coherence.Records}, Params: []string{"record", itoa(id), visibility}}
}

func submitterListDesc(offset, limit int) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.Submitters, coherence.Records},
		Params:  []string{"submitters", strconv.Itoa(offset), strconv.Itoa(limit)},
	}
}

func submitterDesc(id int64) coherence.Descriptor {
	return coherence.Descriptor{
		Classes: []coherence.Class{coherence.Submitters, coherence.Records},
		Params:  []string{"submitter", itoa(id)},
	}
}

// cached serves a GET. The fingerprint is computed before anything is
// built, so a revalidation that matches costs no body work. Concurrent
// misses on the same fingerprint share one build.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, resource string, d coherence.Descriptor, build func(ctx context.Context) (any, error)) {
	fp := s.deps.Fingerprinter.Compute(d)
	etag := fp.ETag()
	w.Header().Set("Cache-Control", "no-cache")

	if coherence.HandleConditional(r.Header.Get("If-None-Match"), fp) == coherence.NotModified {
		metrics.RecordCacheLookup(resource, "hit")
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	metrics.RecordCacheLookup(resource, "miss")

	// The shared build must not die with whichever request started it.
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := s.builds.Do(resource+"/"+string(fp), func() (any, error) {
		body, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(body)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(v.([]byte))
	_, _ = w.Write([]byte{'\n'})
}

// precondition enforces If-Match against the current fingerprint of d.
func (s *Server) precondition(r *http.Request, d coherence.Descriptor) error {
	err := coherence.CheckPrecondition(r.Header.Get("If-Match"), s.deps.Fingerprinter.Compute(d))
	if err != nil {
		metrics.RecordPreconditionFailed()
	}
	return err
}

// written answers a mutation with the resource's new validator.
func (s *Server) written(w http.ResponseWriter, status int, d coherence.Descriptor, body any) {
	w.Header().Set("ETag", s.deps.Fingerprinter.Compute(d).ETag())
	writeJSON(w, status, body)
}
