package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	gatewayclient "github.com/yungbote/markbook-backend/internal/clients/gateway"
	"github.com/yungbote/markbook-backend/internal/markbook"
	"github.com/yungbote/markbook-backend/internal/platform/envutil"
	"github.com/yungbote/markbook-backend/internal/platform/logger"
	"github.com/yungbote/markbook-backend/internal/platform/shutdown"
	"github.com/yungbote/markbook-backend/internal/services"
	"github.com/yungbote/markbook-backend/internal/snapshot"
)

const usage = `usage: markbookctl <command> [flags] [args]

commands:
  summary <snapshot.json>               print averages and totals per student
  export-xlsx -o f <snapshot.json>      write the markbook workbook locally
  import-roster -o f <roster.xlsx>      build a snapshot from a spreadsheet roster
  save -name n <snapshot.json>          save a snapshot through the gateway
  list                                  list saved snapshots
  load -o f <locator>                   download a saved snapshot
  delete <locator>                      delete a saved snapshot

remote commands take -gateway (MARKBOOK_GATEWAY_URL) and -timeout.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "summary":
		err = runSummary(args)
	case "export-xlsx":
		err = runExportXLSX(log, args)
	case "import-roster":
		err = runImportRoster(log, args)
	case "save", "list", "load", "delete":
		err = runRemote(ctx, log, cmd, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		log.Sync()
		os.Exit(1)
	}
}

func readStore(path string) (*markbook.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	store := markbook.NewStore()
	if _, err := snapshot.Import(store, raw); err != nil {
		return nil, err
	}
	return store, nil
}

func writeOutput(path string, body []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(body)
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

func runSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("snapshot file required")
	}
	store, err := readStore(fs.Arg(0))
	if err != nil {
		return err
	}
	return printSummary(os.Stdout, store.State())
}

func printSummary(w io.Writer, st markbook.State) error {
	settings := markbook.DefaultSettings()
	visible := st.VisibleMetrics.Visible()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"ID", "NAME", "HOUSE", "STATUS"}
	for _, k := range visible {
		label := strings.ToUpper(settings.Metric(k).Label)
		header = append(header, label+" AVG", label+" TOTAL")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range markbook.Overview(st) {
		cols := []string{fmt.Sprint(row.ID), row.Name, row.House, row.Status}
		for _, m := range row.Metrics {
			cols = append(cols, markbook.FormatAverage(m.Average), fmt.Sprint(m.Total))
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	fmt.Fprintf(tw, "\n%d student(s), %d week(s)\n", len(st.Students), len(st.Weeks))
	return tw.Flush()
}

func runExportXLSX(log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("export-xlsx", flag.ExitOnError)
	out := fs.String("o", "markbook.xlsx", "output workbook path")
	settingsPath := fs.String("settings", envutil.String("MARKBOOK_SETTINGS_YAML", ""), "settings yaml")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("snapshot file required")
	}
	settings, err := markbook.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}
	store, err := readStore(fs.Arg(0))
	if err != nil {
		return err
	}
	body, err := services.NewWorkbookService(log, settings).Export(store.State())
	if err != nil {
		return err
	}
	return writeOutput(*out, body)
}

func runImportRoster(log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("import-roster", flag.ExitOnError)
	out := fs.String("o", "-", "output snapshot path")
	settingsPath := fs.String("settings", envutil.String("MARKBOOK_SETTINGS_YAML", ""), "settings yaml")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("roster workbook required")
	}
	settings, err := markbook.LoadSettings(*settingsPath)
	if err != nil {
		return err
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()
	students, err := services.NewWorkbookService(log, settings).ImportRoster(f)
	if err != nil {
		return err
	}
	st := markbook.State{Students: students, Weeks: []string{}, VisibleMetrics: markbook.DefaultVisibleMetrics()}
	body, err := snapshot.Marshal(snapshot.Build(st, time.Now()))
	if err != nil {
		return err
	}
	return writeOutput(*out, body)
}

func runRemote(ctx context.Context, log *logger.Logger, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	baseURL := fs.String("gateway", envutil.String("MARKBOOK_GATEWAY_URL", "http://localhost:8080/api/markbook"), "gateway base URL")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	name := fs.String("name", "markbook", "base filename for save")
	out := fs.String("o", "-", "output path for load")
	_ = fs.Parse(args)

	api, err := gatewayclient.New(log, gatewayclient.Config{BaseURL: *baseURL, Timeout: *timeout})
	if err != nil {
		return err
	}

	switch cmd {
	case "save":
		if fs.NArg() != 1 {
			return fmt.Errorf("snapshot file required")
		}
		store, err := readStore(fs.Arg(0))
		if err != nil {
			return err
		}
		session := gatewayclient.NewSession(log, api, store)
		saved, err := session.Save(ctx, *name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\nurl:      %s\ndownload: %s\n", session.Status(), saved.URL, saved.DownloadURL)

	case "list":
		session := gatewayclient.NewSession(log, api, nil)
		files, err := session.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILENAME\tUPLOADED\tSIZE\tURL")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.Filename, f.UploadedAt.Local().Format(time.DateTime), f.Size, f.URL)
		}
		return tw.Flush()

	case "load":
		if fs.NArg() != 1 {
			return fmt.Errorf("locator required")
		}
		session := gatewayclient.NewSession(log, api, nil)
		if err := session.Load(ctx, fs.Arg(0)); err != nil {
			return err
		}
		body, err := session.ExportFile()
		if err != nil {
			return err
		}
		return writeOutput(*out, body)

	case "delete":
		if fs.NArg() != 1 {
			return fmt.Errorf("locator required")
		}
		session := gatewayclient.NewSession(log, api, nil)
		if err := session.Delete(ctx, fs.Arg(0)); err != nil {
			return err
		}
		fmt.Println(session.Status())
	}
	return nil
}
