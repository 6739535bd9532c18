package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/skariga/absenku/internal/events"
	"github.com/skariga/absenku/internal/model"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Watch attendance records change as students report in",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")
		natsURL, _ := cmd.Flags().GetString("nats")
		tz, _ := cmd.Flags().GetString("timezone")

		filter, err := recordFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		if filter.From == "" && filter.To == "" {
			today, err := todayIn(time.Now(), tz)
			if err != nil {
				return err
			}
			filter.From, filter.To = today, today
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := &recordWatcher{out: cmd.OutOrStdout(), filter: filter, seen: make(map[string]time.Time)}
		if err := w.queryAndPrint(ctx); err != nil {
			return err
		}
		if once {
			return nil
		}

		if natsURL != "" {
			return w.watchNATS(ctx, natsURL)
		}
		return w.watchPoll(ctx, interval)
	},
}

// recordWatcher prints records that are new or changed since the last query.
type recordWatcher struct {
	out    io.Writer
	filter model.RecordFilter
	seen   map[string]time.Time
}

// watchNATS re-queries after attendance events, debounced.
func (w *recordWatcher) watchNATS(ctx context.Context, natsURL string) error {
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.TopicAttendancePrefix + ">")
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0)
		case <-debounce.C:
			if err := w.queryAndPrint(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *recordWatcher) watchPoll(ctx context.Context, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := w.queryAndPrint(ctx); err != nil {
			return err
		}
	}
}

func (w *recordWatcher) queryAndPrint(ctx context.Context) error {
	resp, err := attendanceClient.ListRecords(ctx, w.filter)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("listing records: %w", err)
	}
	changed := diffRecords(resp.Records, w.seen)
	if len(changed) == 0 {
		return nil
	}
	if jsonOutput {
		return printJSON(w.out, changed)
	}
	printRecordList(w.out, changed, resp.Total)
	return nil
}

// diffRecords returns records that are new or whose updated_at moved since
// they were last seen. It updates seen in place.
func diffRecords(recs []*model.AttendanceRecord, seen map[string]time.Time) []*model.AttendanceRecord {
	var changed []*model.AttendanceRecord
	for _, r := range recs {
		prev, ok := seen[r.ID]
		if !ok || !r.UpdatedAt.Equal(prev) {
			changed = append(changed, r)
		}
		seen[r.ID] = r.UpdatedAt
	}
	return changed
}

func init() {
	watchCmd.Flags().StringP("user", "u", "", "filter by student ID")
	watchCmd.Flags().String("from", "", "first date (YYYY-MM-DD, default today)")
	watchCmd.Flags().String("to", "", "last date (YYYY-MM-DD, default today)")
	watchCmd.Flags().StringSliceP("status", "s", nil, "filter by check-in status (repeatable)")
	watchCmd.Flags().String("sort", "-date", "sort field; prefix with - for descending")
	watchCmd.Flags().Int("limit", 200, "maximum number of records per query")
	watchCmd.Flags().Int("offset", 0, "offset for pagination")
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval when NATS is not configured")
	watchCmd.Flags().Bool("once", false, "exit after the first query")
	watchCmd.Flags().String("nats", natsDefault(), "NATS URL for event-driven refresh")
	watchCmd.Flags().String("timezone", timezoneDefault(), "service time zone that decides \"today\" (env ABSENKU_TIMEZONE)")
}

func natsDefault() string {
	if s := os.Getenv("ABSENKU_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

func timezoneDefault() string {
	if tz := os.Getenv("ABSENKU_TIMEZONE"); tz != "" {
		return tz
	}
	return "Asia/Jakarta"
}

// todayIn returns the calendar date of now in the service time zone, which
// is the date attendance records are filed under.
func todayIn(now time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("invalid --timezone %q: %w", tz, err)
	}
	return model.DateOf(now, loc), nil
}
