package pipeline

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/jobs"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/file"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// ScanConfig tunes the watch-mode scanner
type ScanConfig struct {
	MediaDirs []string
	CronExpr  string
	Languages []string
	Format    string
}

// Scanner watches media directories on a cron schedule and enqueues an
// episode job for every video file with a sibling subtitle track.
// Overlapping scan ticks collapse into one running scan.
type Scanner struct {
	cfg   ScanConfig
	queue *jobs.Queue
	cron  *cron.Cron
	sf    singleflight.Group

	mu   sync.Mutex
	seen map[string]bool
}

// NewScanner creates a scanner
func NewScanner(cfg ScanConfig, queue *jobs.Queue, c *cron.Cron) *Scanner {
	return &Scanner{cfg: cfg, queue: queue, cron: c, seen: make(map[string]bool)}
}

// Schedule registers the scan on the cron schedule
func (s *Scanner) Schedule() error {
	if s.cfg.CronExpr == "" {
		return fmt.Errorf("cron expression is required for watch mode")
	}
	_, err := s.cron.AddFunc(s.cfg.CronExpr, func() {
		_, _, _ = s.sf.Do("scan", func() (any, error) {
			s.ScanOnce()
			return nil, nil
		})
	})
	return err
}

// ScanOnce walks the media directories once and returns the number of
// newly enqueued jobs.
func (s *Scanner) ScanOnce() int {
	enqueued := 0
	for _, dir := range s.cfg.MediaDirs {
		videos, err := file.FindByExt(dir, ".mkv", ".mp4", ".avi")
		if err != nil {
			log.Error("scan of %s failed: %v", dir, err)
			continue
		}
		for _, video := range videos {
			if s.alreadySeen(video) {
				continue
			}
			sub := file.Sibling(video, ".srt")
			if sub == "" {
				log.Debug("no subtitle track next to %s, skipping", video)
				continue
			}

			_, created := s.queue.Enqueue(jobs.EnqueueRequest{
				Source:    "scan",
				DedupeKey: video,
				Payload: jobs.Payload{
					MediaFile:    video,
					SubtitleFile: sub,
					Languages:    s.cfg.Languages,
					Format:       s.cfg.Format,
				},
			})
			if created {
				s.markSeen(video)
				enqueued++
				log.Info("enqueued %s", video)
			}
		}
	}
	if enqueued > 0 {
		log.Info("scan enqueued %d episodes", enqueued)
	}
	return enqueued
}

func (s *Scanner) alreadySeen(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[path]
}

func (s *Scanner) markSeen(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[path] = true
}
