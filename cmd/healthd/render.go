package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jonwraymond/healthops/health"
)

func writeReportJSON(w io.Writer, report health.Report, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderReport writes a human-readable view of report:
//
//	cleaning-management-api 1.0.0  ERROR  2026-01-01T12:00:00.000Z
//
//	CHECK        STATUS  TIME  DETAIL
//	database     ok      12ms  PostgreSQL 17.4
//	environment  error         missing: SUPABASE_URL
func renderReport(w io.Writer, report health.Report) error {
	fmt.Fprintf(w, "%s %s  %s  %s\n", report.Service, report.Version,
		strings.ToUpper(report.Status.String()), health.FormatTimestamp(report.Timestamp))
	if !report.Detailed() {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tTIME\tDETAIL")
	for _, name := range report.CheckNames() {
		result := report.Checks[name]
		elapsed := ""
		if result.ResponseTime != nil {
			elapsed = result.ResponseTime.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, result.Status, elapsed, detail(result))
	}
	return tw.Flush()
}

func detail(r health.ProbeResult) string {
	switch {
	case r.Error != "":
		return r.Error
	case len(r.Missing) > 0:
		return "missing: " + strings.Join(r.Missing, ", ")
	case r.Version != "":
		return r.Version
	default:
		return r.Message
	}
}
