package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/taskpilot-ai/taskpilot/internal/task"
)

// similarityThreshold is the minimum fraction of reference tokens that must
// match a title before the resolver accepts it.
const similarityThreshold = 0.5

// ErrReferenceNotFound means no task matched the reference well enough
var ErrReferenceNotFound = errors.New("no task matches that reference")

// AmbiguousReferenceError means several tasks matched equally well. It is a
// distinct outcome from not-found: the caller must ask the user which task
// was meant instead of picking one.
type AmbiguousReferenceError struct {
	Reference  string
	Candidates []*task.Task
}

func (e *AmbiguousReferenceError) Error() string {
	titles := make([]string, len(e.Candidates))
	for i, t := range e.Candidates {
		titles[i] = fmt.Sprintf("%q (id %d)", t.Title, t.ID)
	}
	return fmt.Sprintf("reference %q matches multiple tasks: %s", e.Reference, strings.Join(titles, ", "))
}

// followUpReferences point back at the previously touched task instead of
// naming one.
var followUpReferences = map[string]bool{
	"it":            true,
	"that":          true,
	"this":          true,
	"that one":      true,
	"this one":      true,
	"the task":      true,
	"that task":     true,
	"the same task": true,
	"the last one":  true,
	"last task":     true,
	"the last task": true,
}

type lastTaskKey struct{}

// WithLastTask records the session's most recently referenced task id so
// follow-up references like "mark it done" can resolve without a title. The
// id is weak: it is re-validated against the store on use.
func WithLastTask(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, lastTaskKey{}, id)
}

func lastTaskFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(lastTaskKey{}).(int64)
	return id
}

// Resolver maps free-text task references ("3", "the groceries task",
// "code review") onto concrete tasks.
type Resolver struct {
	store task.Store
}

// NewResolver creates a resolver backed by the given store
func NewResolver(store task.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve finds the task a reference points at. A follow-up reference ("it",
// "that one") resolves to the context's last-task id when one is carried. A
// numeric reference is treated as an id and is authoritative when it exists.
// Otherwise titles are scored by token overlap; the single best match above
// the threshold wins, a tie at the top yields AmbiguousReferenceError.
func (r *Resolver) Resolve(ctx context.Context, reference string) (*task.Task, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrReferenceNotFound
	}

	if followUpReferences[normalizeFragment(reference)] {
		id := lastTaskFrom(ctx)
		if id <= 0 {
			return nil, ErrReferenceNotFound
		}
		found, err := r.store.Get(ctx, id)
		if errors.Is(err, task.ErrNotFound) {
			return nil, ErrReferenceNotFound
		}
		if err != nil {
			return nil, err
		}
		return found, nil
	}

	if id, err := strconv.ParseInt(reference, 10, 64); err == nil {
		found, err := r.store.Get(ctx, id)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, task.ErrNotFound) {
			return nil, err
		}
		// fall through: a numeric-looking title is still possible
	}

	tasks, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	refTokens := referenceTokens(reference)
	if len(refTokens) == 0 {
		return nil, ErrReferenceNotFound
	}

	var (
		bestScore  float64
		candidates []*task.Task
	)
	for _, t := range tasks {
		score := titleScore(refTokens, t.Title)
		switch {
		case score > bestScore:
			bestScore = score
			candidates = []*task.Task{t}
		case score == bestScore && score > 0:
			candidates = append(candidates, t)
		}
	}

	if bestScore < similarityThreshold || len(candidates) == 0 {
		return nil, ErrReferenceNotFound
	}
	if len(candidates) > 1 {
		return nil, &AmbiguousReferenceError{Reference: reference, Candidates: candidates}
	}
	return candidates[0], nil
}

// filler words carry no identity and are ignored when scoring references
var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "my": true, "that": true,
	"this": true, "task": true, "item": true, "one": true, "to": true,
	"for": true, "about": true, "please": true,
}

func referenceTokens(reference string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(reference)) {
		word = strings.Trim(word, ".,!?\"'")
		if word == "" || fillerWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// titleScore is the fraction of reference tokens with a fuzzy match among
// the title's tokens. Deterministic, symmetric across candidates, and
// deliberately coarse so that near-identical titles tie instead of one
// winning on a technicality.
func titleScore(refTokens []string, title string) float64 {
	titleTokens := strings.Fields(strings.ToLower(title))
	if len(titleTokens) == 0 {
		return 0
	}

	matched := 0
	for _, token := range refTokens {
		if len(fuzzy.Find(token, titleTokens)) > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(refTokens))
}
