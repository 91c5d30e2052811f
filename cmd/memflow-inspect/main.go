// Command memflow-inspect validates lifecycle configuration files and
// dry-runs probe items through the pipelines they define. By default
// everything runs against an in-process store and the local hash embedder,
// so a config can be exercised without touching real backends; -live wires
// the stores and embedder from the MEMFLOW_* environment instead.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/a2arium/memflow/internal/config"
	"github.com/a2arium/memflow/internal/embedding"
	"github.com/a2arium/memflow/internal/logging"
	"github.com/a2arium/memflow/internal/orchestrator"
	"github.com/a2arium/memflow/internal/storage"
	"github.com/a2arium/memflow/internal/storage/memory"
	"github.com/a2arium/memflow/pkg/metrics"
	"github.com/a2arium/memflow/pkg/types"
)

var (
	configPath   = flag.String("config", "", "Path to lifecycle config YAML (empty runs identity pipelines)")
	validateOnly = flag.Bool("validate", false, "Validate the config file and exit")
	tenant       = flag.String("tenant", "default", "Tenant the probe runs under")
	agent        = flag.String("agent", "", "Agent the probe runs under")
	intentName   = flag.String("intent", "semanticLTM", "Intent the probe is processed with")
	probe        = flag.String("probe", "", "Probe payload to run through the pipeline")
	seedPath     = flag.String("seed", "", "File with one memory per line, remembered before the probe")
	showMetrics  = flag.Bool("metrics", false, "Print the Prometheus metrics text after the run")
	live         = flag.Bool("live", false, "Use the stores and embedder from the MEMFLOW_* environment")
)

func main() {
	flag.Parse()

	var settings *config.Settings
	if *live {
		settings = config.LoadSettings()
		if err := settings.Validate(); err != nil {
			log.Fatalf("Settings invalid: %v", err)
		}
		logging.SetDefault(logging.New(logging.ParseLevel(settings.Logging.Level)))
		if *configPath == "" {
			*configPath = settings.Lifecycle.ConfigPath
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Config invalid: %v", err)
	}

	if *validateOnly {
		printConfigSummary(*configPath, cfg)
		return
	}

	if *probe == "" && !*showMetrics {
		fmt.Println("Nothing to do: pass -probe, -validate or -metrics")
		flag.Usage()
		os.Exit(2)
	}

	intent := types.Intent(*intentName)
	if !intent.Valid() {
		log.Fatalf("Unknown intent %q (valid: %s)", *intentName, intentList())
	}

	o, err := buildOrchestrator(settings, cfg)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}
	defer o.Close()

	ctx := context.Background()

	if *seedPath != "" {
		if err := seedMemories(ctx, o, *seedPath); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
	}

	if *probe != "" {
		if intent == types.IntentRetrieval {
			runRecallProbe(ctx, o)
		} else {
			runWriteProbe(ctx, o, intent)
		}
	}

	if *showMetrics {
		printMetrics(o)
	}
}

func loadConfig(path string) (*types.LifecycleConfig, error) {
	if path == "" {
		return nil, nil
	}
	return config.LoadLifecycle(path)
}

// buildOrchestrator wires the in-process defaults, or the configured
// backends when settings are present.
func buildOrchestrator(settings *config.Settings, cfg *types.LifecycleConfig) (*orchestrator.Orchestrator, error) {
	if settings == nil {
		return orchestrator.New(
			storage.NewSingleStoreRouter(memory.New()),
			orchestrator.WithLifecycleConfig(cfg),
			orchestrator.WithEmbedder(embedding.NewLocalEmbedder(embedding.DefaultLocalDimension)),
		)
	}

	router, err := orchestrator.OpenRouter(settings.Stores)
	if err != nil {
		return nil, err
	}
	embedder, err := orchestrator.OpenEmbedder(settings.Embedding)
	if err != nil {
		router.Close()
		return nil, err
	}
	return orchestrator.New(router,
		orchestrator.WithLifecycleConfig(cfg),
		orchestrator.WithEmbedder(embedder),
	)
}

func printConfigSummary(path string, cfg *types.LifecycleConfig) {
	fmt.Printf("Config OK: %s\n", path)
	if cfg == nil {
		fmt.Println("  (empty: every pipeline is the identity)")
		return
	}

	if intents := configuredIntents(&cfg.Defaults); len(intents) > 0 {
		fmt.Printf("  defaults: %s\n", strings.Join(intents, ", "))
	}

	tenants := make([]string, 0, len(cfg.Tenants))
	for name := range cfg.Tenants {
		tenants = append(tenants, name)
	}
	sort.Strings(tenants)
	for _, name := range tenants {
		tc := cfg.Tenants[name]
		fmt.Printf("  tenant %s:\n", name)
		if intents := configuredIntents(&tc.Defaults); len(intents) > 0 {
			fmt.Printf("    defaults: %s\n", strings.Join(intents, ", "))
		}
		agents := make([]string, 0, len(tc.Agents))
		for a := range tc.Agents {
			agents = append(agents, a)
		}
		sort.Strings(agents)
		for _, a := range agents {
			ac := tc.Agents[a]
			if intents := configuredIntents(&ac); len(intents) > 0 {
				fmt.Printf("    agent %s: %s\n", a, strings.Join(intents, ", "))
			}
		}
	}
}

func configuredIntents(c *types.IntentConfigs) []string {
	var out []string
	for _, intent := range types.AllIntents() {
		if c.ForIntent(intent) != nil {
			out = append(out, string(intent))
		}
	}
	return out
}

func intentList() string {
	var names []string
	for _, i := range types.AllIntents() {
		names = append(names, string(i))
	}
	return strings.Join(names, ", ")
}

// seedMemories stores one semantic memory per non-empty line of the file.
func seedMemories(ctx context.Context, o *orchestrator.Orchestrator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := o.Remember(ctx, line, orchestrator.RememberOptions{
			TenantID: *tenant,
			AgentID:  *agent,
		}); err != nil {
			return fmt.Errorf("remember line %d: %w", count+1, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Printf("Seeded %d memories for tenant %s\n\n", count, *tenant)
	return nil
}

func runWriteProbe(ctx context.Context, o *orchestrator.Orchestrator, intent types.Intent) {
	item := types.NewItem(*probe, types.DataTypeText, intent, *tenant)
	item.Metadata.AgentID = *agent

	start := time.Now()
	res, err := o.ProcessMemoryItem(ctx, item, intent)
	if err != nil {
		log.Fatalf("Probe failed: %v", err)
	}

	fmt.Printf("Probe: %s/%s/%s\n", *tenant, *agent, intent)
	fmt.Printf("Elapsed: %v, store: %s, persisted: %v\n\n", time.Since(start).Round(time.Microsecond), res.Store, res.Persisted)

	if len(res.Produced) == 0 {
		fmt.Println("The pipeline dropped the item (policy outcome, not an error).")
		return
	}
	for i, it := range res.Produced {
		printItem(i+1, it)
	}
}

func runRecallProbe(ctx context.Context, o *orchestrator.Orchestrator) {
	results, err := o.Recall(ctx, *probe, orchestrator.RecallOptions{
		TenantID: *tenant,
		AgentID:  *agent,
	})
	if err != nil {
		log.Fatalf("Recall failed: %v", err)
	}

	fmt.Printf("Recall %q: %d result(s)\n\n", *probe, len(results))
	for i, it := range results {
		printItem(i+1, it)
	}
}

func printItem(n int, it *types.Item[string]) {
	fmt.Printf("%d. %s\n", n, it.ID)
	fmt.Printf("   Data: %s\n", truncate(it.Data, 120))
	if len(it.Metadata.ProcessingHistory) > 0 {
		fmt.Printf("   History: %s\n", strings.Join(it.Metadata.ProcessingHistory, " -> "))
	}
	if len(it.Metadata.Tags) > 0 {
		fmt.Printf("   Tags: %s\n", strings.Join(it.Metadata.Tags, ", "))
	}
	if len(it.Metadata.Annotations) > 0 {
		keys := make([]string, 0, len(it.Metadata.Annotations))
		for k := range it.Metadata.Annotations {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("   %s: %s\n", k, truncate(fmt.Sprintf("%v", it.Metadata.Annotations[k]), 100))
		}
	}
	fmt.Println()
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func printMetrics(o *orchestrator.Orchestrator) {
	reg, err := metrics.NewRegistry(o)
	if err != nil {
		log.Fatalf("Failed to build metrics registry: %v", err)
	}
	if err := metrics.WriteText(os.Stdout, reg); err != nil {
		log.Fatalf("Failed to write metrics: %v", err)
	}
}
