// Package questions supplies the ice-breaking question list, from the
// backend when one is configured and from a bundled list otherwise.
package questions

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/datealchemy/alchemy/internal/supabase"
)

//go:embed questions.toml
var bundledTOML []byte

// Fetcher reads active questions ordered by creation time.
type Fetcher interface {
	FetchActiveQuestions(ctx context.Context) ([]supabase.Question, error)
}

// Origin records where a Set came from.
type Origin int

const (
	OriginBundled Origin = iota
	OriginRemote
	// OriginFallback is the bundled list served because the remote fetch
	// failed or came back empty.
	OriginFallback
)

func (o Origin) String() string {
	switch o {
	case OriginRemote:
		return "remote"
	case OriginFallback:
		return "fallback"
	default:
		return "bundled"
	}
}

// Set is a question list and its origin.
type Set struct {
	Questions []string
	Origin    Origin
}

// Bundled returns the questions compiled into the binary.
func Bundled() []string {
	bundledOnce.Do(func() {
		var doc struct {
			Questions []string `toml:"questions"`
		}
		if err := toml.Unmarshal(bundledTOML, &doc); err != nil {
			panic(fmt.Sprintf("questions: bundled list is invalid: %v", err))
		}
		bundled = clean(doc.Questions)
	})
	out := make([]string, len(bundled))
	copy(out, bundled)
	return out
}

var (
	bundledOnce sync.Once
	bundled     []string
)

// Source loads the question list once per lifetime and serves it from
// memory afterwards.
type Source struct {
	fetcher Fetcher
	log     zerolog.Logger

	group singleflight.Group

	mu     sync.Mutex
	cached *Set
}

// NewSource returns a Source over fetcher. A nil fetcher serves the
// bundled list.
func NewSource(fetcher Fetcher, log zerolog.Logger) *Source {
	return &Source{fetcher: fetcher, log: log}
}

// Remote reports whether the source reads from the backend.
func (s *Source) Remote() bool { return s.fetcher != nil }

// Load returns the question list. The first call with a fetcher reaches
// the backend; concurrent first calls share that request. When the fetch
// fails the bundled list is returned together with the error, and is what
// later calls get too.
func (s *Source) Load(ctx context.Context) (Set, error) {
	if s.fetcher == nil {
		return Set{Questions: Bundled(), Origin: OriginBundled}, nil
	}
	if set, ok := s.loaded(); ok {
		return set, nil
	}

	type result struct {
		set Set
		err error
	}
	v, _, _ := s.group.Do("questions", func() (any, error) {
		if set, ok := s.loaded(); ok {
			return result{set: set}, nil
		}
		set, err := s.fetch(ctx)
		s.mu.Lock()
		s.cached = &set
		s.mu.Unlock()
		return result{set: set, err: err}, nil
	})
	res := v.(result)
	return copySet(res.set), res.err
}

func (s *Source) fetch(ctx context.Context) (Set, error) {
	rows, err := s.fetcher.FetchActiveQuestions(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("loading questions failed; using bundled list")
		return Set{Questions: Bundled(), Origin: OriginFallback}, fmt.Errorf("fetch questions: %w", err)
	}
	texts := make([]string, 0, len(rows))
	for _, row := range rows {
		texts = append(texts, row.Question)
	}
	texts = clean(texts)
	if len(texts) == 0 {
		s.log.Info().Msg("no active questions on the backend; using bundled list")
		return Set{Questions: Bundled(), Origin: OriginFallback}, nil
	}
	s.log.Debug().Int("count", len(texts)).Msg("questions loaded")
	return Set{Questions: texts, Origin: OriginRemote}, nil
}

func (s *Source) loaded() (Set, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == nil {
		return Set{}, false
	}
	return copySet(*s.cached), true
}

func copySet(set Set) Set {
	out := set
	out.Questions = make([]string, len(set.Questions))
	copy(out.Questions, set.Questions)
	return out
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, q := range in {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
