package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// DefaultKey is the object name of the status document.
const DefaultKey = "status.json"

// ErrCorrupt is returned by [Store.Load] when the stored document cannot be decoded.
var ErrCorrupt = errors.New("status document is corrupt")

// Ref identifies an endpoint within the document and carries its display fields.
type Ref struct {
	SiteID       string
	SiteName     string
	EndpointID   string
	EndpointName string

	// Link is the dashboard link. Ignored when LinkDisabled is set.
	Link         string
	LinkDisabled bool
}

// Streak holds the consecutive-outcome counters of one endpoint.
// At most one of the two counters is non-zero.
type Streak struct {
	ConsecutiveErrors      int
	ConsecutiveHighLatency int
}

// Pulse is published to subscribers after every save.
type Pulse struct {
	LastPulse int64 `json:"lastPulse"`
	Sites     int   `json:"sites"`
	Endpoints int   `json:"endpoints"`

	// Failing counts endpoints whose latest entry is an error.
	Failing int `json:"failing"`
}

type streakKey struct {
	site     string
	endpoint string
}

// Options configures a [Store].
type Options struct {
	// Key is the object name of the document. Defaults to [DefaultKey].
	Key string

	// Pretty indents the serialized document.
	Pretty bool

	// Now overrides the clock used for lastPulse. Defaults to time.Now.
	Now func() time.Time
}

// Store owns the status document and the per-endpoint streak counters.
//
// All mutation goes through [Store.Apply] and is serialized by a single
// mutex. The document is written back to the bucket by [Store.Save]; streak
// counters live for the lifetime of the process and are never persisted.
//
// Subscribers receive a [Pulse] after every save via buffered channels
// (buffer size 16). Sends are non-blocking; a slow subscriber misses pulses.
type Store struct {
	bucket *blob.Bucket
	key    string
	pretty bool
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	doc     *Document
	streaks map[streakKey]Streak

	subMu       sync.RWMutex
	subscribers map[chan Pulse]struct{}
}

// OpenBucket opens the bucket holding the status document. bucketURL takes
// precedence; otherwise dir is used as a local file bucket and created if needed.
func OpenBucket(ctx context.Context, dir, bucketURL string) (*blob.Bucket, error) {
	if bucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bucket %q: %w", bucketURL, err)
		}
		return bucket, nil
	}

	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	bucket, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state directory %q: %w", dir, err)
	}
	return bucket, nil
}

// New returns a store writing to bucket. The document is empty until
// [Store.Load] is called.
func New(bucket *blob.Bucket, logger *slog.Logger, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		bucket:      bucket,
		key:         opts.Key,
		pretty:      opts.Pretty,
		now:         opts.Now,
		logger:      logger,
		streaks:     make(map[streakKey]Streak),
		subscribers: make(map[chan Pulse]struct{}),
	}
}

// Init creates an empty document in the bucket if none exists yet.
func (s *Store) Init(ctx context.Context) error {
	exists, err := s.bucket.Exists(ctx, s.key)
	if err != nil {
		return fmt.Errorf("failed to check status document: %w", err)
	}
	if exists {
		return nil
	}

	data, err := s.encode(NewDocument())
	if err != nil {
		return err
	}
	if err := s.write(ctx, data); err != nil {
		return err
	}
	s.logger.Info("created empty status document", "key", s.key)
	return nil
}

// Loaded reports whether an in-memory document is present.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

// Load reads the document from the bucket and makes it current.
//
// A missing document yields an empty one and no error. A corrupt document
// yields an empty one and an error wrapping [ErrCorrupt]. When the read
// itself fails, the in-memory document is kept (or an empty one created)
// and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.bucket.ReadAll(ctx, s.key)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.doc == nil {
			s.doc = NewDocument()
		}
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return fmt.Errorf("failed to read status document: %w", err)
	}

	doc := NewDocument()
	decodeErr := json.Unmarshal(data, doc)
	if decodeErr != nil {
		doc = NewDocument()
	}
	doc.repair()

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()

	if decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, decodeErr)
	}
	return nil
}

// BeginCycle repairs the in-memory document and records the display config
// and site/endpoint ordering of the cycle about to run.
func (s *Store) BeginCycle(display DisplayConfig, ui []UIGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		s.doc = NewDocument()
	}
	s.doc.repair()
	s.doc.Config = display
	if ui != nil {
		s.doc.UI = ui
	}
}

// History returns a copy of the endpoint's log, oldest first.
func (s *Store) History(ref Ref) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil
	}
	site, ok := s.doc.Sites[ref.SiteID]
	if !ok {
		return nil
	}
	ep, ok := site.Endpoints[ref.EndpointID]
	if !ok {
		return nil
	}
	return slices.Clone(ep.Logs)
}

// Apply records entry for the endpoint identified by ref.
//
// It creates the site and endpoint if needed, refreshes their display
// fields, appends entry, evicts the oldest entries beyond maxLen and updates
// the streak counters. highLatency is only consulted for successful entries.
// The updated streak is returned.
func (s *Store) Apply(ref Ref, entry Entry, maxLen int, highLatency bool) Streak {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		s.doc = NewDocument()
	}

	ep := s.doc.endpoint(ref)
	if ref.EndpointName != "" {
		ep.Name = ref.EndpointName
	}
	if !ref.LinkDisabled {
		ep.Link = ref.Link
	}

	ep.Logs = append(ep.Logs, entry)
	if maxLen > 0 && len(ep.Logs) > maxLen {
		ep.Logs = slices.Clone(ep.Logs[len(ep.Logs)-maxLen:])
	}

	key := streakKey{site: ref.SiteID, endpoint: ref.EndpointID}
	streak := s.streaks[key]
	switch {
	case entry.Failed():
		streak.ConsecutiveErrors++
		streak.ConsecutiveHighLatency = 0
	case highLatency:
		streak.ConsecutiveErrors = 0
		streak.ConsecutiveHighLatency++
	default:
		streak = Streak{}
	}
	s.streaks[key] = streak

	return streak
}

// Streak returns the current counters of an endpoint.
func (s *Store) Streak(ref Ref) Streak {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaks[streakKey{site: ref.SiteID, endpoint: ref.EndpointID}]
}

// Save stamps lastPulse, writes the full document to the bucket and
// publishes a [Pulse] to subscribers.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.doc == nil {
		s.doc = NewDocument()
	}
	s.doc.LastPulse = s.now().UnixMilli()
	data, err := s.encode(s.doc)
	pulse := s.pulseLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if err := s.write(ctx, data); err != nil {
		return err
	}

	s.notifySubscribers(pulse)
	return nil
}

// Snapshot returns the current document as JSON.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.doc
	if doc == nil {
		doc = NewDocument()
	}
	return s.encode(doc)
}

// Subscribe creates a new subscription and returns a channel for receiving pulses.
//
// Caller must call [Store.Unsubscribe] when done to prevent resource leaks.
func (s *Store) Subscribe() <-chan Pulse {
	ch := make(chan Pulse, 16)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (s *Store) Unsubscribe(ch <-chan Pulse) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for subCh := range s.subscribers {
		if subCh == ch {
			delete(s.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (s *Store) notifySubscribers(pulse Pulse) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- pulse:
		default:
			// subscriber is slow, drop the pulse
		}
	}
}

func (s *Store) pulseLocked() Pulse {
	pulse := Pulse{LastPulse: s.doc.LastPulse, Sites: len(s.doc.Sites)}
	for _, site := range s.doc.Sites {
		pulse.Endpoints += len(site.Endpoints)
		for _, ep := range site.Endpoints {
			if n := len(ep.Logs); n > 0 && ep.Logs[n-1].Failed() {
				pulse.Failing++
			}
		}
	}
	return pulse
}

func (s *Store) encode(doc *Document) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if s.pretty {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode status document: %w", err)
	}
	return data, nil
}

func (s *Store) write(ctx context.Context, data []byte) error {
	err := s.bucket.WriteAll(ctx, s.key, data, &blob.WriterOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to write status document: %w", err)
	}
	return nil
}
