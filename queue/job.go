package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ScrapeJob is the message carried on the jobs topic. Wire format:
// {"correlationId": "...", "urls": ["..."]}.
type ScrapeJob struct {
	CorrelationID string   `json:"correlationId"`
	URLs          []string `json:"urls"`
}

var ErrInvalidJob = errors.New("invalid scrape job")

// NewScrapeJob builds a job with a fresh correlation id. URLs are deduplicated
// keeping first-seen order and anything that is not an absolute http(s) URL
// is dropped.
func NewScrapeJob(urls []string) *ScrapeJob {
	return &ScrapeJob{
		CorrelationID: uuid.NewString(),
		URLs:          UniqueURLs(urls),
	}
}

func UniqueURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if !isAbsoluteHTTP(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (j *ScrapeJob) Encode() ([]byte, error) {
	if j.URLs == nil {
		return json.Marshal(ScrapeJob{CorrelationID: j.CorrelationID, URLs: []string{}})
	}
	return json.Marshal(j)
}

func DecodeScrapeJob(data []byte) (*ScrapeJob, error) {
	var j ScrapeJob
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if j.CorrelationID == "" {
		return nil, fmt.Errorf("%w: missing correlationId", ErrInvalidJob)
	}
	return &j, nil
}
