// Command routectl manages monitored routes and thresholds from a terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/iEdgir01/traffic-manager/config"
	"github.com/iEdgir01/traffic-manager/geo"
	"github.com/iEdgir01/traffic-manager/maps"
	"github.com/iEdgir01/traffic-manager/models"
	"github.com/iEdgir01/traffic-manager/notify"
	"github.com/iEdgir01/traffic-manager/observability"
	"github.com/iEdgir01/traffic-manager/services"
	"github.com/iEdgir01/traffic-manager/store"
	"github.com/iEdgir01/traffic-manager/traffic"
)

const usage = `usage: routectl <command> [flags]

commands:
  add -name NAME -start "LAT LNG" -end "LAT LNG" [-priority H|N]
  list
  remove NAME|INDEX
  priority NAME H|N
  check -id ID [-notify]
  check-all [-notify]
  thresholds show | set -file FILE | reset
`

type app struct {
	cfg    *config.Config
	routes *store.PostgresStore
	cache  *services.CacheService
	out    io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.ConnString())
	if err != nil {
		fatal(fmt.Errorf("db pool init: %w", err))
	}
	defer pool.Close()
	if err := store.EnsureSchema(ctx, pool); err != nil {
		fatal(err)
	}

	a := &app{cfg: cfg, routes: store.NewPostgresStore(pool), out: os.Stdout}
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "routectl:", err)
	os.Exit(1)
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add":
		return a.add(ctx, args)
	case "list":
		return a.list(ctx)
	case "remove":
		return a.remove(ctx, args)
	case "priority":
		return a.priority(ctx, args)
	case "check":
		return a.check(ctx, args)
	case "check-all":
		return a.checkAll(ctx, args)
	case "thresholds":
		return a.thresholds(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "route name")
	start := fs.String("start", "", `start as DMS pair, e.g. 26°10'30"S 28°02'15"E`)
	end := fs.String("end", "", "end as DMS pair")
	prio := fs.String("priority", "N", "H or N")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("add: -name is required")
	}
	s, err := geo.ParseDMSPair(*start)
	if err != nil {
		return fmt.Errorf("add: start: %w", err)
	}
	e, err := geo.ParseDMSPair(*end)
	if err != nil {
		return fmt.Errorf("add: end: %w", err)
	}
	p, ok := models.ParsePriority(*prio)
	if !ok {
		return fmt.Errorf("add: invalid priority %q", *prio)
	}
	route := &models.Route{
		Name:     strings.TrimSpace(*name),
		StartLat: s.Lat,
		StartLng: s.Lng,
		EndLat:   e.Lat,
		EndLng:   e.Lng,
		Priority: p,
	}
	if err := a.routes.AddRoute(ctx, route); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added route %d %q (%.2f km straight line)\n", route.ID, route.Name, geo.HaversineKm(s, e))
	return nil
}

func (a *app) list(ctx context.Context) error {
	routes, err := a.routes.ListRoutes(ctx)
	if err != nil {
		return err
	}
	if len(routes) == 0 {
		fmt.Fprintln(a.out, "no routes")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tPRIORITY\tLAST STATE\tCHECKS")
	for i, r := range routes {
		last := r.PreviousState()
		if last == "" {
			last = "-"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\n", i+1, r.ID, r.Name, r.Priority, last, len(r.History()))
	}
	return tw.Flush()
}

// resolveName accepts a route name or its 1-based position in list output.
func (a *app) resolveName(ctx context.Context, arg string) (string, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	routes, err := a.routes.ListRoutes(ctx)
	if err != nil {
		return "", err
	}
	if idx < 1 || idx > len(routes) {
		return "", fmt.Errorf("index %d out of range 1-%d", idx, len(routes))
	}
	return routes[idx-1].Name, nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: routectl remove NAME|INDEX")
	}
	name, err := a.resolveName(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.routes.DeleteRoute(ctx, name); err != nil {
		return err
	}
	if a.cfg.Maps.Enabled {
		_ = maps.NewStaticMaps(a.cfg.Maps.Dir, a.cfg.Directions.APIKey, a.cfg.Maps.BaseURL).Remove(name)
	}
	fmt.Fprintf(a.out, "removed route %q\n", name)
	return nil
}

func (a *app) priority(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: routectl priority NAME H|N")
	}
	name, err := a.resolveName(ctx, args[0])
	if err != nil {
		return err
	}
	p, ok := models.ParsePriority(args[1])
	if !ok {
		return fmt.Errorf("invalid priority %q", args[1])
	}
	if err := a.routes.UpdatePriority(ctx, name, p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "route %q priority set to %s\n", name, p)
	return nil
}

func (a *app) checker() (*services.Checker, error) {
	if a.cfg.Directions.APIKey == "" {
		return nil, errors.New("GOOGLE_MAPS_API_KEY is required for checks")
	}
	logger := observability.NewLogger(a.cfg.LogLevel)
	if a.cache == nil {
		cache, err := services.NewCacheService(a.cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, checking without cross-process lock", "error", err)
		}
		a.cache = cache
	}

	directions := traffic.NewGoogleDirections(a.cfg.Directions.APIKey, a.cfg.Directions.BaseURL, a.cfg.Directions.Timeout)
	deps := services.CheckerDeps{
		Store:      a.routes,
		Classifier: traffic.NewClassifier(directions, traffic.NewThresholdRepository(a.routes)),
		Cache:      a.cache,
		Logger:     logger,
	}
	if a.cfg.Discord.WebhookURL != "" {
		deps.Sender = notify.NewDiscordWebhook(a.cfg.Discord.WebhookURL)
	}
	if a.cfg.Maps.Enabled {
		deps.Maps = maps.NewStaticMaps(a.cfg.Maps.Dir, a.cfg.Directions.APIKey, a.cfg.Maps.BaseURL)
	}
	return services.NewChecker(services.CheckerConfig{
		Concurrency:  a.cfg.Checker.Concurrency,
		SegmentLimit: a.cfg.Checker.SegmentLimit,
		LockTTL:      a.cfg.Checker.LockTTL,
	}, deps), nil
}

func (a *app) printResults(results ...services.Result) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tPREVIOUS\tALERT\tDETAIL")
	for _, r := range results {
		detail := r.Error
		if detail == "" && r.Verdict != nil {
			detail = r.Verdict.Summary
		}
		prev := string(r.Previous)
		if prev == "" {
			prev = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.RouteID, r.Name, r.State, prev, r.Alert, detail)
	}
	_ = tw.Flush()
}

func (a *app) check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	id := fs.Int64("id", 0, "route id")
	notifyFlag := fs.Bool("notify", false, "send alerts for state changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("check: -id is required")
	}
	c, err := a.checker()
	if err != nil {
		return err
	}
	defer a.cache.Close()
	res, err := c.CheckByID(ctx, *id, *notifyFlag)
	if err != nil {
		return err
	}
	a.printResults(res)
	return res.Err
}

func (a *app) checkAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check-all", flag.ContinueOnError)
	notifyFlag := fs.Bool("notify", false, "send alerts for state changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.checker()
	if err != nil {
		return err
	}
	defer a.cache.Close()
	results, err := c.CheckAll(ctx, *notifyFlag)
	if err != nil {
		return err
	}
	a.printResults(results...)
	return nil
}

func (a *app) thresholds(ctx context.Context, args []string) error {
	repo := traffic.NewThresholdRepository(a.routes)
	if len(args) == 0 {
		return errors.New("usage: routectl thresholds show | set -file FILE | reset")
	}
	switch args[0] {
	case "show":
		t, err := repo.Load(ctx)
		if err != nil {
			return err
		}
		return a.printThresholds(t)
	case "set":
		fs := flag.NewFlagSet("thresholds set", flag.ContinueOnError)
		file := fs.String("file", "", "JSON file with the bucket list, - for stdin")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		t, err := readThresholds(*file)
		if err != nil {
			return err
		}
		if err := repo.Save(ctx, t); err != nil {
			return err
		}
		return a.printThresholds(t)
	case "reset":
		t, err := repo.Reset(ctx)
		if err != nil {
			return err
		}
		return a.printThresholds(t)
	default:
		return fmt.Errorf("unknown thresholds command %q", args[0])
	}
}

func readThresholds(path string) ([]traffic.Threshold, error) {
	var r io.Reader
	switch path {
	case "":
		return nil, errors.New("thresholds set: -file is required")
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var t []traffic.Threshold
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode thresholds: %w", err)
	}
	return t, nil
}

func (a *app) printThresholds(t []traffic.Threshold) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KM\tFACTOR TOTAL\tFACTOR STEP\tDELAY TOTAL\tDELAY STEP")
	for _, b := range t {
		fmt.Fprintf(tw, "%g-%g\t%g\t%g\t%g\t%g\n", b.MinKm, b.MaxKm, b.FactorTotal, b.FactorStep, b.DelayTotal, b.DelayStep)
	}
	return tw.Flush()
}
