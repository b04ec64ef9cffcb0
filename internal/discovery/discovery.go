// Package discovery finds reachable DayMind backends.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/api"
)

// Status values for a probed backend
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Backend is one probed backend address
type Backend struct {
	URL      string        `json:"url"`
	Status   string        `json:"status"`
	Latency  time.Duration `json:"latency"`
	Tasks    int           `json:"tasks"`
	LastSeen time.Time     `json:"last_seen,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Online reports whether the last probe succeeded
func (b *Backend) Online() bool { return b.Status == StatusOnline }

// Config holds discovery configuration
type Config struct {
	// Ports to scan on localhost
	Ports []int
	// Custom URLs to check in addition to the port scan
	CustomURLs []string
	// Timeout per probe
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Ports: []int{
			5000, // default backend port
			5001,
			8000,
			8080,
		},
		CustomURLs: []string{},
		Timeout:    2 * time.Second,
	}
}

// Service probes candidate addresses and remembers what it saw
type Service struct {
	cfg    *Config
	logger zerolog.Logger

	mu       sync.RWMutex
	backends map[string]*Backend
}

// NewService creates a new discovery service
func NewService(cfg *Config, logger zerolog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		cfg:      cfg,
		logger:   logger.With().Str("component", "discovery").Logger(),
		backends: make(map[string]*Backend),
	}
}

// AddCustomURL adds an address to scan
func (s *Service) AddCustomURL(url string) {
	url = strings.TrimRight(url, "/")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.cfg.CustomURLs {
		if u == url {
			return
		}
	}
	s.cfg.CustomURLs = append(s.cfg.CustomURLs, url)
}

func (s *Service) candidates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, u := range s.cfg.CustomURLs {
		add(u)
	}
	for _, p := range s.cfg.Ports {
		add(fmt.Sprintf("http://localhost:%d", p))
	}
	return urls
}

// Scan probes every candidate concurrently. Online backends come first,
// fastest first.
func (s *Service) Scan(ctx context.Context) []*Backend {
	urls := s.candidates()

	var wg sync.WaitGroup
	results := make(chan *Backend, len(urls))
	for _, u := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			results <- s.probe(ctx, url)
		}(u)
	}
	wg.Wait()
	close(results)

	s.mu.Lock()
	for b := range results {
		if prev, ok := s.backends[b.URL]; ok && !b.Online() {
			b.LastSeen = prev.LastSeen
		}
		s.backends[b.URL] = b
	}
	list := s.listLocked()
	s.mu.Unlock()

	online := 0
	for _, b := range list {
		if b.Online() {
			online++
		}
	}
	s.logger.Debug().Int("probed", len(urls)).Int("online", online).Msg("Discovery scan complete")
	return list
}

// probe checks one address with the task endpoint
func (s *Service) probe(ctx context.Context, url string) *Backend {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	client := api.NewClient(&api.ClientConfig{BaseURL: url, Timeout: s.cfg.Timeout}, s.logger)
	start := time.Now()
	list, err := client.Tasks(ctx)
	b := &Backend{URL: url, Latency: time.Since(start)}
	if err != nil {
		b.Status = StatusOffline
		b.Error = err.Error()
		s.logger.Debug().Str("url", url).Err(err).Msg("Backend offline")
		return b
	}
	b.Status = StatusOnline
	b.Tasks = len(list)
	b.LastSeen = time.Now()
	s.logger.Debug().Str("url", url).Dur("latency", b.Latency).Int("tasks", b.Tasks).Msg("Backend online")
	return b
}

// Backends returns everything probed so far in scan order
func (s *Service) Backends() []*Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

// Best returns the fastest online backend, or nil
func (s *Service) Best() *Backend {
	list := s.Backends()
	if len(list) > 0 && list[0].Online() {
		return list[0]
	}
	return nil
}

func (s *Service) listLocked() []*Backend {
	list := make([]*Backend, 0, len(s.backends))
	for _, b := range s.backends {
		cp := *b
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Online() != list[j].Online() {
			return list[i].Online()
		}
		if list[i].Online() {
			return list[i].Latency < list[j].Latency
		}
		return list[i].URL < list[j].URL
	})
	return list
}
