// Package kb persists knowledge-base artifacts. Every Put replaces the named artifact
// wholesale.
package kb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Artifact categories
const (
	CategoryEntities      = "entities"
	CategoryRelationships = "relationships"
	CategoryThemes        = "themes"
	CategoryTimelines     = "timelines"
	CategoryQA            = "qa"
)

// Artifact is one named output document within a category
type Artifact struct {
	Category string
	Name     string // file name, e.g. person.json
	Payload  any
}

// Key returns category/name
func (a Artifact) Key() string {
	return a.Category + "/" + a.Name
}

// Sink stores artifacts
type Sink interface {
	Put(ctx context.Context, a Artifact) error
	Close(ctx context.Context) error
}

// Clearer is implemented by sinks that can drop every artifact of a category
type Clearer interface {
	Clear(ctx context.Context, category string) error
}

// Clear removes a category from sinks that support it and is a no-op otherwise
func Clear(ctx context.Context, s Sink, category string) error {
	if c, ok := s.(Clearer); ok {
		return c.Clear(ctx, category)
	}
	return nil
}

// Open dispatches on target: gs://bucket/prefix, sqlite://path, neo4j:// or bolt:// URIs,
// or a plain directory. Several targets may be joined with commas.
func Open(ctx context.Context, target string) (Sink, error) {
	parts := strings.Split(target, ",")
	if len(parts) > 1 {
		var sinks []Sink
		for _, p := range parts {
			s, err := Open(ctx, strings.TrimSpace(p))
			if err != nil {
				_ = Multi(sinks).Close(ctx)
				return nil, err
			}
			sinks = append(sinks, s)
		}
		return Multi(sinks), nil
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("empty knowledge base target")
	}

	scheme, rest, found := strings.Cut(target, "://")
	if !found {
		return NewFileSink(target), nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		return NewFileSink(rest), nil
	case "gs":
		bucket, prefix, _ := strings.Cut(rest, "/")
		return NewGCSSink(ctx, bucket, prefix)
	case "sqlite":
		return NewSQLiteSink(ctx, rest)
	case "neo4j", "neo4j+s", "bolt", "bolt+s":
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse graph target: %w", err)
		}
		var user, password string
		if u.User != nil {
			user = u.User.Username()
			password, _ = u.User.Password()
			u.User = nil
		}
		return NewGraphSink(ctx, u.String(), user, password)
	default:
		return nil, fmt.Errorf("unsupported knowledge base scheme: %s", scheme)
	}
}

// Multi writes every artifact to each sink in turn
type Multi []Sink

// Put stops at the first failing sink
func (m Multi) Put(ctx context.Context, a Artifact) error {
	for _, s := range m {
		if err := s.Put(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Clear clears the category in every sink that supports it
func (m Multi) Clear(ctx context.Context, category string) error {
	for _, s := range m {
		if err := Clear(ctx, s, category); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the joined errors
func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
