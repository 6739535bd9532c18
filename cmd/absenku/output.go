package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/skariga/absenku/internal/client"
	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func formatStatus(s model.Status) string {
	if s == "" {
		s = model.StatusNone
	}
	return ui.RenderStatus(s)
}

func printResult(w io.Writer, res *client.LocationResult) {
	fmt.Fprintf(w, "Outcome:     %s\n", ui.RenderOutcome(res.Outcome))
	if res.Direction != "" {
		fmt.Fprintf(w, "Direction:   %s\n", res.Direction)
	}
	if res.RecordID != "" {
		fmt.Fprintf(w, "Record:      %s\n", res.RecordID)
	}
	if res.Distance > 0 {
		fmt.Fprintf(w, "Distance:    %.1f m\n", res.Distance)
	}
	if res.RemainingSeconds > 0 {
		fmt.Fprintf(w, "Remaining:   %s\n", (time.Duration(res.RemainingSeconds) * time.Second).String())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, res.Notification)
}

func printRecord(w io.Writer, rec *model.AttendanceRecord) {
	fmt.Fprintf(w, "ID:          %s\n", rec.ID)
	fmt.Fprintf(w, "User:        %s\n", rec.UserID)
	fmt.Fprintf(w, "Date:        %s\n", rec.Date)
	fmt.Fprintf(w, "Check-in:    %s  %s\n", formatTime(rec.CheckInAt), formatStatus(rec.Status))
	if rec.CheckOutAt != nil {
		fmt.Fprintf(w, "Check-out:   %s  %s\n", formatTime(*rec.CheckOutAt), formatStatus(rec.CheckOutStatus))
	}
	fmt.Fprintf(w, "Location:    %.6f, %.6f\n", rec.CheckInLat, rec.CheckInLng)
	if rec.LatenessMinutes > 0 {
		fmt.Fprintf(w, "Late:        %d min\n", rec.LatenessMinutes)
	}
	fmt.Fprintf(w, "Updated At:  %s\n", formatTime(rec.UpdatedAt))
}

func printEvents(w io.Writer, evts []*model.Event) {
	if len(evts) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Events:")
	for _, e := range evts {
		fmt.Fprintf(w, "  [%s] %s\n", formatTime(e.CreatedAt), e.Topic)
	}
}

func printRecordList(w io.Writer, recs []*model.AttendanceRecord, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tUSER\tCHECK-IN\tSTATUS\tLATE\tCHECK-OUT\tOUT STATUS")
	for _, r := range recs {
		out := "-"
		if r.CheckOutAt != nil {
			out = r.CheckOutAt.Local().Format("15:04")
		}
		in := "-"
		if !r.CheckInAt.IsZero() {
			in = r.CheckInAt.Local().Format("15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.Date,
			r.UserID,
			in,
			formatStatus(r.Status),
			r.LatenessMinutes,
			out,
			formatStatus(r.CheckOutStatus),
		)
	}
	tw.Flush()
	if total >= 0 {
		fmt.Fprintf(w, "\n%d records (%d total)\n", len(recs), total)
	}
}

func printSessions(w io.Writer, sessions []client.SessionEntry) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no verifications in progress")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tRECORD\tDIRECTION\tSTATUS\tPINGS\tELAPSED\tIDLE")
	for _, s := range sessions {
		status := formatStatus(s.Status)
		if s.Invalid {
			status += ui.RenderMuted(" (signal lost)")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			s.UserID,
			s.RecordID,
			s.Direction,
			status,
			s.PingCount,
			secs(s.ElapsedSecs),
			secs(s.IdleSecs),
		)
	}
	tw.Flush()
}

func secs(f float64) string {
	return (time.Duration(f) * time.Second).String()
}
