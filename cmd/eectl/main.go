package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ee-insight/auth"
	"ee-insight/config"
	"ee-insight/earthengine"
	"ee-insight/export"
	"ee-insight/logging"
	"ee-insight/render"
	"ee-insight/store"
	"ee-insight/tracker"
	"ee-insight/utils"
)

func usage() {
	fmt.Println(`Usage: eectl [-config config.yaml] <command> [flags]

status                                   : Earth Engine connection status
datasets                                 : List available datasets
region -bbox minLon,minLat,maxLon,maxLat : Process a region (-max-cells, -watch)
cells -ids id1,id2                       : Process grid cells (-watch)
cell -id <cell>                          : Process one cell synchronously
tasks                                    : List stored tasks (-limit)
export -task-id <id>                     : Export stored results (-type csv|xlsx, -o file)
token -sub <name>                        : Issue an API token (-operator, -minutes, -prompt)`)
}

func main() {
	configFile := flag.String("config", "config.yaml", "Config file, relative to the project root")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		fail(2, "Failed loading %s: %v", *configFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "status":
		runStatus(ctx, cfg)
	case "datasets":
		runDatasets(ctx, cfg)
	case "region":
		runRegion(ctx, cfg, args)
	case "cells":
		runCells(ctx, cfg, args)
	case "cell":
		runCell(ctx, cfg, args)
	case "tasks":
		runTasks(ctx, cfg, args)
	case "export":
		runExport(ctx, cfg, args)
	case "token":
		runToken(cfg, args)
	default:
		usage()
		os.Exit(1)
	}
}

func fail(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

func newClient(cfg *config.Config) *earthengine.Client {
	return earthengine.NewClient(cfg.EarthEngine.APIURL,
		earthengine.WithToken(cfg.EarthEngine.Token),
		earthengine.WithTimeout(cfg.EarthEngine.RequestTimeout()),
	)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func runStatus(ctx context.Context, cfg *config.Config) {
	s := tracker.NewSession(newClient(cfg), tracker.Options{})
	st := s.CheckStatus(ctx)
	printJSON(st)
	if !st.OK() {
		os.Exit(1)
	}
}

func runDatasets(ctx context.Context, cfg *config.Config) {
	s := tracker.NewSession(newClient(cfg), tracker.Options{})
	ds := s.Datasets(ctx)
	if len(ds) == 0 {
		fmt.Println("No datasets available")
		return
	}
	for _, d := range ds {
		fmt.Printf("%-32s %-40s %s, %s\n", d.ID, d.Name, d.Resolution, d.TemporalCoverage)
	}
}

// console prints status updates and banners, redrawing in place on a terminal.
type console struct {
	tty bool
}

func (c console) TaskStatus(u tracker.StatusUpdate) {
	if c.tty {
		fmt.Printf("\r\033[Ktask %d: %s", u.TaskID, u.Message)
		if u.Status == earthengine.StatusCompleted || u.Status == earthengine.StatusFailed {
			fmt.Println()
		}
		return
	}
	fmt.Printf("task %d: %s\n", u.TaskID, u.Message)
}

func (c console) TaskError(message string) {
	if c.tty {
		fmt.Println()
	}
	fmt.Fprintln(os.Stderr, "error: "+message)
}

func (c console) TaskResults(id earthengine.TaskID, rs *earthengine.ResultSet) {}

func openStore(cfg *config.Config) *store.Store {
	if cfg.Store.Backend == "" {
		return nil
	}
	st, err := store.Open(cfg.Store.Backend, cfg.Store.DSN)
	if err != nil {
		fail(2, "Failed opening store: %v", err)
	}
	return st
}

func newSession(cfg *config.Config, layers *render.LayerSet, st *store.Store) *tracker.Session {
	tty := utils.StdoutIsTerminal()
	opts := tracker.Options{
		DataSources: cfg.EarthEngine.DataSources,
		Observer:    console{tty: tty},
		Layers:      layers,
	}
	if !tty {
		opts.Logger = logging.New(os.Stderr)
	}
	if st != nil {
		opts.Recorder = st
	}
	return tracker.NewSession(newClient(cfg), opts)
}

func runRegion(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	bboxStr := fs.String("bbox", "", "minLon,minLat,maxLon,maxLat (required)")
	maxCells := fs.Int("max-cells", cfg.EarthEngine.MaxCells, "Maximum number of cells (1-500)")
	watch := fs.Bool("watch", false, "Poll until the task ends")
	fs.Parse(args)
	if *bboxStr == "" {
		fail(1, "Usage: eectl region -bbox minLon,minLat,maxLon,maxLat")
	}
	bbox, err := earthengine.ParseBoundingBox(*bboxStr)
	if err != nil {
		fail(1, "Invalid bbox: %v", err)
	}

	st := openStore(cfg)
	if st != nil {
		defer st.Close()
	}
	layers := render.NewLayerSet(nil)
	s := newSession(cfg, layers, st)
	if _, ok := s.EnsureConnected(ctx); !ok {
		os.Exit(1)
	}
	h, err := s.SubmitRegion(ctx, bbox, *maxCells)
	if err != nil {
		os.Exit(1)
	}
	fmt.Printf("task %d submitted for %s\n", h.TaskID, bbox)
	follow(ctx, s, h, layers, *watch)
}

func runCells(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("cells", flag.ExitOnError)
	ids := fs.String("ids", "", "Comma separated cell ids (required)")
	watch := fs.Bool("watch", false, "Poll until the task ends")
	fs.Parse(args)
	var cellIDs []string
	for _, id := range strings.Split(*ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cellIDs = append(cellIDs, id)
		}
	}
	if len(cellIDs) == 0 {
		fail(1, "Usage: eectl cells -ids id1,id2")
	}

	st := openStore(cfg)
	if st != nil {
		defer st.Close()
	}
	layers := render.NewLayerSet(nil)
	s := newSession(cfg, layers, st)
	h, err := s.SubmitCells(ctx, cellIDs)
	if err != nil {
		os.Exit(1)
	}
	fmt.Printf("task %d submitted for %d cells\n", h.TaskID, len(cellIDs))
	follow(ctx, s, h, layers, *watch)
}

func follow(ctx context.Context, s *tracker.Session, h *tracker.Handle, layers *render.LayerSet, watch bool) {
	if !watch {
		s.Stop()
		return
	}
	state, err := h.Wait(ctx)
	if err != nil {
		s.Stop()
		if errors.Is(err, context.Canceled) {
			fmt.Println("\ninterrupted, task keeps running on the backend")
			return
		}
		fail(1, "%v", err)
	}
	if state.Status == earthengine.StatusFailed {
		os.Exit(1)
	}
	for _, n := range render.LayerNames {
		fmt.Printf("%-8s %d markers\n", n, layers.Layer(n).Len())
	}
}

func runCell(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("cell", flag.ExitOnError)
	id := fs.String("id", "", "Cell id (required)")
	fs.Parse(args)
	if *id == "" {
		fail(1, "Usage: eectl cell -id <cell>")
	}
	s := tracker.NewSession(newClient(cfg), tracker.Options{Observer: console{}})
	res, err := s.ProcessCell(ctx, *id)
	if err != nil {
		os.Exit(1)
	}
	printJSON(res)
}

func runTasks(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("tasks", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of tasks")
	fs.Parse(args)
	st := openStore(cfg)
	if st == nil {
		fail(1, "No store configured")
	}
	defer st.Close()
	tasks, err := st.ListTasks(ctx, *limit)
	if err != nil {
		fail(2, "%v", err)
	}
	for _, t := range tasks {
		label, _ := tracker.DisplayProgress(t.Progress)
		fmt.Printf("%-8d %-7s %-10s %-8s %s %s\n", t.ID, t.Kind, t.Status, label,
			t.UpdatedAt.Local().Format("2006-01-02 15:04:05"), t.Error)
	}
}

func runExport(ctx context.Context, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	taskID := fs.Int64("task-id", 0, "Stored task id (required)")
	fileType := fs.String("type", "csv", "csv or xlsx")
	out := fs.String("o", "", "Output file (default ee_task_<id>.<type>)")
	fs.Parse(args)
	if *taskID == 0 {
		fail(1, "Usage: eectl export -task-id <id>")
	}
	st := openStore(cfg)
	if st == nil {
		fail(1, "No store configured")
	}
	defer st.Close()
	rs, err := st.LoadResults(ctx, earthengine.TaskID(*taskID))
	if err != nil {
		fail(2, "%v", err)
	}

	write := export.WriteCSV
	switch *fileType {
	case "csv":
	case "xlsx", "excel":
		*fileType = "xlsx"
		write = export.WriteXLSX
	default:
		fail(1, "Unknown type %q", *fileType)
	}
	if *out == "" {
		*out = fmt.Sprintf("ee_task_%d.%s", *taskID, *fileType)
	}
	f, err := os.Create(*out)
	if err != nil {
		fail(2, "%v", err)
	}
	if err := write(f, rs); err != nil {
		f.Close()
		fail(2, "%v", err)
	}
	if err := f.Close(); err != nil {
		fail(2, "%v", err)
	}
	fmt.Printf("%d samples written to %s\n", rs.Len(), *out)
}

func runToken(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "", "Token subject (required)")
	operator := fs.Bool("operator", false, "Allow submitting tasks")
	minutes := fs.Int("minutes", cfg.JWT.ExpirationMinutes, "Lifetime in minutes")
	prompt := fs.Bool("prompt", false, "Read the signing secret from the terminal")
	newSecret := fs.Bool("new-secret", false, "Print a random secret for jwt.secret and exit")
	fs.Parse(args)

	if *newSecret {
		fmt.Println(utils.RandomHex(32))
		return
	}
	if *sub == "" {
		fail(1, "Usage: eectl token -sub <name> [-operator]")
	}
	secret := cfg.JWT.Secret
	if *prompt {
		s, err := utils.PromptSecret("JWT secret: ")
		if err != nil {
			fail(1, "%v", err)
		}
		secret = s
	}
	if secret == "" {
		fail(1, "jwt.secret is empty; the API accepts requests without a token")
	}
	tok, err := auth.GenerateJWT(secret, *sub, *operator, *minutes)
	if err != nil {
		fail(2, "%v", err)
	}
	fmt.Println(tok)
}
