package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/skariga/absenku/internal/events"
)

const (
	// feedBacklog is how many recent events a reconnecting dashboard can
	// catch up on via Last-Event-ID.
	feedBacklog = 512

	feedKeepalive    = 15 * time.Second
	feedClientBuffer = 64
)

// defaultFeedTopics is what a dashboard streams when it names no topics:
// every record change plus the notifications sent to students.
var defaultFeedTopics = []string{events.TopicAttendancePrefix + ">", events.TopicNotifyPrefix + "*"}

// feedEvent is one attendance event as streamed to dashboards.
type feedEvent struct {
	Seq    uint64
	Topic  string
	UserID string
	Data   []byte // JSON payload
}

// feedFilter selects the events one dashboard connection receives.
type feedFilter struct {
	topics []string // NATS-style patterns; empty means defaultFeedTopics
	userID string   // only this student's events when set
}

func (f feedFilter) match(e *feedEvent) bool {
	if f.userID != "" && e.UserID != f.userID {
		return false
	}
	topics := f.topics
	if len(topics) == 0 {
		topics = defaultFeedTopics
	}
	for _, p := range topics {
		if topicMatches(p, e.Topic) {
			return true
		}
	}
	return false
}

type feedSub struct {
	filter feedFilter
	ch     chan *feedEvent
}

// feed fans attendance events out to dashboard streams and keeps the most
// recent ones for replay after a reconnect.
type feed struct {
	mu      sync.Mutex
	seq     uint64
	backlog []*feedEvent // oldest first
	subs    map[*feedSub]struct{}
}

func newFeed() *feed {
	return &feed{
		backlog: make([]*feedEvent, 0, feedBacklog),
		subs:    make(map[*feedSub]struct{}),
	}
}

// publish assigns the next sequence number to an event, appends it to the
// backlog and hands it to every matching subscriber. Subscribers whose
// buffer is full miss the event; they can catch up by reconnecting.
func (f *feed) publish(topic, userID string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	e := &feedEvent{Seq: f.seq, Topic: topic, UserID: userID, Data: data}
	if len(f.backlog) == feedBacklog {
		copy(f.backlog, f.backlog[1:])
		f.backlog[len(f.backlog)-1] = e
	} else {
		f.backlog = append(f.backlog, e)
	}

	for s := range f.subs {
		if !s.filter.match(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// subscribe registers a stream. When resume is set it also returns the
// backlogged events after lastSeq that pass the filter. Both happen under
// one lock so nothing published in between is lost or duplicated.
func (f *feed) subscribe(filter feedFilter, lastSeq uint64, resume bool) (*feedSub, []*feedEvent) {
	s := &feedSub{filter: filter, ch: make(chan *feedEvent, feedClientBuffer)}

	f.mu.Lock()
	defer f.mu.Unlock()
	var missed []*feedEvent
	if resume {
		for _, e := range f.backlog {
			if e.Seq > lastSeq && filter.match(e) {
				missed = append(missed, e)
			}
		}
	}
	f.subs[s] = struct{}{}
	return s, missed
}

func (f *feed) unsubscribe(s *feedSub) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

// topicMatches matches a dot-separated topic against a NATS-style pattern:
// "*" is one segment and a trailing ">" is one or more segments.
func topicMatches(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// parseFeedFilter reads ?topics=a,b and ?user_id= from the request.
func parseFeedFilter(r *http.Request) feedFilter {
	q := r.URL.Query()
	f := feedFilter{userID: strings.TrimSpace(q.Get("user_id"))}
	for _, t := range strings.Split(q.Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.topics = append(f.topics, t)
		}
	}
	return f
}

// handleEventStream handles GET /v1/events/stream, the dashboard's live
// feed of attendance events as server-sent events.
func (s *AttendanceServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var lastSeq uint64
	resume := false
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			lastSeq, resume = n, true
		}
	}

	sub, missed := s.feed.subscribe(parseFeedFilter(r), lastSeq, resume)
	defer s.feed.unsubscribe(sub)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, e := range missed {
		writeFeedEvent(w, e)
	}
	flusher.Flush()

	keepalive := time.NewTicker(feedKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-sub.ch:
			writeFeedEvent(w, e)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeFeedEvent(w http.ResponseWriter, e *feedEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", e.Seq, e.Topic, e.Data)
}
