package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"marketplace/internal/domain/catalog"
	"marketplace/internal/i18n"
	"marketplace/internal/logger"
	"marketplace/internal/util"
)

const defaultMaxConcurrent = 8

type Source interface {
	ListPosts(ctx context.Context, subject string) ([]catalog.Post, error)
	ListSubjects(ctx context.Context) ([]catalog.Subject, error)
}

type ImageResolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

var subjectIcons = map[int64]string{
	1: "artMusic",
	2: "englishLan",
	3: "foreignLan",
	4: "holiday",
	5: "math",
	6: "science",
	7: "socialStu",
	8: "specialty",
}

type Service struct {
	src           Source
	images        ImageResolver
	maxConcurrent int
	log           *slog.Logger
}

// NewService wires the catalog. images may be nil, in which case every card shows the placeholder.
func NewService(src Source, images ImageResolver, maxConcurrent int, log *slog.Logger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{src: src, images: images, maxConcurrent: maxConcurrent, log: log}
}

// Posts lists cards for subject with the first image of each resolved.
// A card whose image cannot be fetched gets the placeholder instead of failing the list.
func (s *Service) Posts(ctx context.Context, subject string) ([]catalog.Post, error) {
	posts, err := s.src.ListPosts(ctx, strings.TrimSpace(subject))
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range posts {
		idx := idx
		posts[idx].Quantity = 1
		g.Go(func() error {
			p := &posts[idx]
			path := firstImage(p.ImageURLs)
			if path == "" || s.images == nil {
				p.Placeholder = true
				return nil
			}
			uri, err := s.images.Resolve(ctx, path)
			if err != nil {
				s.log.Warn("error downloading image", slog.Int64("post_id", p.ID), slog.String("path", path), slog.Any("err", err))
				p.Placeholder = true
				return nil
			}
			p.ImageURL = uri
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return posts, nil
}

// Subjects merges the translated category list with the subject table and attaches icons.
// A failed query is logged and the translated list is returned on its own.
func (s *Service) Subjects(ctx context.Context, lang string) []catalog.Subject {
	rows, err := s.src.ListSubjects(ctx)
	if err != nil {
		s.log.Error("supabase error", slog.String("table", "subject"), slog.Any("err", err))
	}
	byID := make(map[int64]catalog.Subject, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	var out []catalog.Subject
	seen := map[int64]bool{}
	for _, c := range i18n.Lookup(lang).Categories() {
		id, err := strconv.ParseInt(c.ID, 10, 64)
		if err != nil {
			continue
		}
		sub := catalog.Subject{ID: id, Name: c.Name, Description: c.Description}
		if sub.Name == "" {
			sub.Name = byID[id].Name
		}
		sub.Icon = iconFor(sub)
		out = append(out, sub)
		seen[id] = true
	}
	for _, r := range rows {
		if seen[r.ID] {
			continue
		}
		r.Icon = iconFor(r)
		out = append(out, r)
	}
	return out
}

func iconFor(s catalog.Subject) string {
	if icon, ok := subjectIcons[s.ID]; ok {
		return icon
	}
	return util.Slugify(s.Name)
}

func firstImage(urls string) string {
	first, _, _ := strings.Cut(urls, ",")
	return strings.TrimSpace(first)
}
