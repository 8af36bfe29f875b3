package service

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/config"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"github.com/smallbiznis/switchboard/internal/recording/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultLimit = 50
	maxLimit     = 500
	minScan      = 200
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Repo     domain.Repository
	PhoneSvc phonenumberdomain.Service
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	phoneSvc phonenumberdomain.Service
	http     *http.Client
}

func New(p Params) domain.Service {
	timeout := p.Cfg.MightyCall.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		log:      p.Log.Named("recording.service"),
		repo:     p.Repo,
		phoneSvc: p.PhoneSvc,
		http:     &http.Client{Timeout: timeout},
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.View, error) {
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}

	keep := func(domain.Recording) bool { return true }
	scan := limit
	if req.AssignedNumbersOnly && req.OrgID != nil {
		numbers, err := s.phoneSvc.ListForOrg(ctx, *req.OrgID)
		if err != nil {
			return nil, err
		}
		if len(numbers) == 0 {
			return []domain.View{}, nil
		}
		ids := make(map[snowflake.ID]struct{}, len(numbers))
		for _, n := range numbers {
			ids[n.ID] = struct{}{}
		}
		set := phonenumberdomain.NewMatchSet(numbers)
		keep = func(r domain.Recording) bool {
			if r.PhoneNumberID != nil {
				if _, ok := ids[*r.PhoneNumberID]; ok {
					return true
				}
			}
			return (r.FromNumber != nil && set.Contains(*r.FromNumber)) ||
				(r.ToNumber != nil && set.Contains(*r.ToNumber))
		}
		scan = max(limit*5, minScan)
	}

	rows, err := s.repo.List(ctx, req.OrgID, scan)
	if err != nil {
		return nil, err
	}
	out := make([]domain.View, 0, min(len(rows), limit))
	for _, r := range rows {
		if !keep(r) {
			continue
		}
		out = append(out, domain.View{Recording: r, DisplayName: r.DisplayName()})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Recording, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// Open starts fetching the recording file. The caller closes Body.
func (s *Service) Open(ctx context.Context, rec *domain.Recording) (*domain.Download, error) {
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	url := strings.TrimSpace(rec.RecordingURL)
	if url == "" {
		return nil, domain.ErrNoURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn("recording fetch failed", zap.String("recording_id", rec.ID.String()), zap.Error(err))
		return nil, &domain.FetchError{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &domain.FetchError{Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &domain.Download{
		Body:          resp.Body,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
		FileName:      fileName(rec),
	}, nil
}

func fileName(rec *domain.Recording) string {
	base := path.Base(strings.SplitN(rec.RecordingURL, "?", 2)[0])
	if base == "" || base == "." || base == "/" {
		return "recording-" + rec.ID.String() + ".mp3"
	}
	return base
}
