package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"time"

	"causet/internal/analysis"
	"causet/internal/config"
	"causet/internal/crawler"
	"causet/internal/graph"
	"causet/internal/intervene"
	"causet/internal/pipeline"
	"causet/internal/report"
	"causet/internal/retrieval"
	"causet/internal/scm"
	"causet/internal/storage"
	"causet/internal/trace"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "causet",
		Short: "Causal graph analysis for program source",
	}
	configPath  string
	metricsAddr string
	dbPath      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9090)")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "causet.db", "Path to the local analysis database (SQLite)")

	analyzeCmd.Flags().BoolVar(&mermaidOut, "mermaid", false, "Print the graph as a Mermaid flowchart")
	impactCmd.Flags().IntVar(&impactHops, "hops", 0, "Also show the undirected neighborhood within N hops")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(mechanismsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(interveneCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(scanCmd)
}

var (
	mermaidOut bool
	impactHops int
)

func loadCfg() *config.Config {
	path := configPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = ""
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// newService picks the configured modeling service. Without an
// endpoint the in-process stub handles fitting and queries.
func newService(cfg *config.Config) scm.Service {
	if cfg.SCM.Endpoint != "" {
		return scm.NewClient(cfg.SCM.Endpoint, cfg.SCM.Timeout)
	}
	return &scm.Stub{Seed: cfg.Simulation.Seed}
}

func initStore() *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return store
}

func sourceHash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func serveMetrics() {
	if metricsAddr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("Warning: metrics server failed: %v", err)
		}
	}()
}

func enhanceFile(ctx context.Context, cfg *config.Config, path, mode string, traces *trace.Trace) *pipeline.Bundle {
	source, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	o, err := pipeline.NewOrchestrator(cfg, newService(cfg))
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	bundle, err := o.Enhance(ctx, source, traces, mode)
	if err != nil {
		log.Fatalf("Enhancement failed: %v", err)
	}
	for _, w := range bundle.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	return bundle
}

// simulatedTraces runs the evaluable mechanisms through the topological
// simulator to produce execution traces.
func simulatedTraces(bundle *pipeline.Bundle, cfg *config.Config) (*trace.Trace, error) {
	code := make(map[string]trace.NodeFunc)
	for id, m := range bundle.Mechanisms.Mechanisms {
		if !m.Evaluable() {
			continue
		}
		mech := m
		code[id] = trace.NodeFunc{
			Params: mech.Variables,
			Fn:     mech.Evaluate,
		}
	}
	return trace.Collect(bundle.Graph, code, trace.Options{
		NumSamples: cfg.Simulation.NumSamples,
		Seed:       cfg.Simulation.Seed,
	})
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Build the causal graph for a source file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serveMetrics()
		cfg := loadCfg()

		start := time.Now()
		bundle := enhanceFile(context.Background(), cfg, args[0], cfg.Pipeline.Mode, nil)
		if bundle.Graph == nil {
			log.Fatalf("Graph construction failed; see warnings above.")
		}

		fmt.Printf("✅ Graph built in %v. Nodes=%d Edges=%d\n",
			time.Since(start), len(bundle.Graph.Nodes), len(bundle.Graph.Edges))

		store := initStore()
		defer store.Close()
		if err := store.SaveAnalysis(context.Background(), &storage.Analysis{
			Hash:     sourceHash(args[0]),
			Graph:    bundle.Graph,
			SCM:      bundle.SCM,
			Warnings: bundle.Warnings,
		}); err != nil {
			log.Printf("Warning: failed to save analysis: %v", err)
		}

		structure := bundle.Graph.CheckStructure()
		fmt.Printf("  -> DAG=%v roots=%v leaves=%v\n", structure.IsDAG, structure.HasRoot, structure.HasLeaf)
		for _, id := range bundle.Graph.NodeIDs() {
			node := bundle.Graph.Nodes[id]
			fmt.Printf("  %-40s %s (line %d)\n", id, node.Kind, node.Line)
		}

		if mermaidOut {
			fmt.Println()
			fmt.Print((&report.MermaidGenerator{}).GenerateFlowChart(bundle.Graph))
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Analyze every Python source file under a directory",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serveMetrics()
		cfg := loadCfg()
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		store := initStore()
		defer store.Close()

		o, err := pipeline.NewOrchestrator(cfg, newService(cfg))
		if err != nil {
			log.Fatalf("Failed to initialize pipeline: %v", err)
		}

		ctx := context.Background()
		analyzed := 0
		failed := 0
		err = crawler.NewCrawler().ScanProject(root, func(path string) {
			source, err := os.ReadFile(path)
			if err != nil {
				log.Printf("Warning: failed to read %s: %v", path, err)
				failed++
				return
			}
			bundle, err := o.Enhance(ctx, source, nil, pipeline.ModeStatic)
			if err != nil || bundle.Graph == nil {
				fmt.Printf("  ⚠️  %s: graph construction failed\n", path)
				failed++
				return
			}
			if err := store.SaveAnalysis(ctx, &storage.Analysis{
				Hash:     sourceHash(path),
				Graph:    bundle.Graph,
				Warnings: bundle.Warnings,
			}); err != nil {
				log.Printf("Warning: failed to save analysis for %s: %v", path, err)
			}
			fmt.Printf("  ✅ %s: %d nodes, %d edges\n", path, len(bundle.Graph.Nodes), len(bundle.Graph.Edges))
			analyzed++
		})
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		fmt.Printf("🎉 Scan complete: %d analyzed, %d failed. Database: %s\n", analyzed, failed, dbPath)
	},
}

var mechanismsCmd = &cobra.Command{
	Use:   "mechanisms [file]",
	Short: "Show the statically inferred mechanism for each function",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serveMetrics()
		cfg := loadCfg()

		bundle := enhanceFile(context.Background(), cfg, args[0], pipeline.ModeStatic, nil)
		if bundle.Graph == nil {
			log.Fatalf("Graph construction failed; see warnings above.")
		}

		ids := make([]string, 0, len(bundle.Mechanisms.Mechanisms))
		for id := range bundle.Mechanisms.Mechanisms {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		if len(ids) == 0 {
			fmt.Println("No function definitions found.")
			return
		}
		for _, id := range ids {
			m := bundle.Mechanisms.Mechanisms[id]
			fmt.Printf("  %-40s %s (confidence %.2f)\n", id, m.String(), m.Confidence)
		}
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate [file]",
	Short: "Collect execution traces by simulating the graph",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		serveMetrics()
		cfg := loadCfg()

		bundle := enhanceFile(context.Background(), cfg, args[0], pipeline.ModeStatic, nil)
		if bundle.Graph == nil {
			log.Fatalf("Graph construction failed; see warnings above.")
		}

		traces, err := simulatedTraces(bundle, cfg)
		if err != nil {
			log.Fatalf("Trace collection failed: %v", err)
		}
		fmt.Printf("✅ Collected %d rows across %d nodes.\n", traces.NumRows(), len(traces.Columns))

		store := initStore()
		defer store.Close()
		if err := store.SaveAnalysis(context.Background(), &storage.Analysis{
			Hash:   sourceHash(args[0]),
			Graph:  bundle.Graph,
			Traces: traces,
		}); err != nil {
			log.Printf("Warning: failed to save traces: %v", err)
		}
	},
}

var interveneCmd = &cobra.Command{
	Use:   "intervene [file] [expression]",
	Short: "Run an intervention query, e.g. causet intervene prog.py 'do(x=5)'",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		serveMetrics()
		cfg := loadCfg()
		ctx := context.Background()

		bundle := enhanceFile(ctx, cfg, args[0], pipeline.ModeStatic, nil)
		if bundle.Graph == nil {
			log.Fatalf("Graph construction failed; see warnings above.")
		}

		store := initStore()
		defer store.Close()
		hash := sourceHash(args[0])

		// Reuse traces from an earlier simulate run when available.
		var traces *trace.Trace
		if saved, err := store.LoadAnalysis(ctx, hash); err == nil && saved.Traces != nil {
			fmt.Println("🔄 Reusing saved execution traces.")
			traces = saved.Traces
		} else {
			traces, err = simulatedTraces(bundle, cfg)
			if err != nil {
				log.Fatalf("Trace collection failed: %v", err)
			}
		}
		bundle = enhanceFile(ctx, cfg, args[0], pipeline.ModeAuto, traces)
		if err := store.SaveAnalysis(ctx, &storage.Analysis{
			Hash:     hash,
			Graph:    bundle.Graph,
			Traces:   traces,
			SCM:      bundle.SCM,
			Warnings: bundle.Warnings,
		}); err != nil {
			log.Printf("Warning: failed to save analysis: %v", err)
		}

		engine := intervene.NewEngine(newService(cfg))
		result, err := engine.Execute(ctx, bundle.Model(), args[1])
		if err != nil {
			log.Fatalf("Intervention failed: %v", err)
		}

		fmt.Printf("✅ Query returned %d samples in %dms.\n", result.Metadata.SampleSize, result.Metadata.DurationMS)
		ids := make([]string, 0, len(result.Statistics))
		for id := range result.Statistics {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			s := result.Statistics[id]
			fmt.Printf("  %-40s mean=%.4f std=%.4f [%.4f, %.4f]\n", id, s.Mean, s.Std, s.Q05, s.Q95)
		}
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact [file] [node]",
	Short: "Show the blast radius of intervening on a node",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		serveMetrics()
		cfg := loadCfg()

		bundle := enhanceFile(context.Background(), cfg, args[0], pipeline.ModeStatic, nil)
		if bundle.Graph == nil {
			log.Fatalf("Graph construction failed; see warnings above.")
		}

		analyzer := analysis.NewAnalyzer(bundle.Graph)
		report, err := analyzer.AnalyzeImpact(resolveArg(bundle.Graph, args[1]))
		if err != nil {
			log.Fatalf("Impact analysis failed: %v", err)
		}

		fmt.Printf("🔍 Impact of %s:\n", report.Node)
		fmt.Printf("  -> %d nodes directly affected\n", len(report.DirectlyAffected))
		for _, n := range report.DirectlyAffected {
			fmt.Printf("     %s (line %d)\n", n.ID, n.Line)
		}
		fmt.Printf("  -> %d nodes indirectly affected\n", len(report.IndirectlyAffected))
		for _, n := range report.IndirectlyAffected {
			fmt.Printf("     %s (line %d)\n", n.ID, n.Line)
		}

		if impactHops > 0 {
			sub := retrieval.ExtractNeighborhood(bundle.Graph, []string{report.Node}, retrieval.Config{MaxHops: impactHops})
			fmt.Printf("  -> neighborhood within %d hops: %d nodes\n", impactHops, len(sub.NodeIDs))
			for _, id := range sub.NodeIDs {
				fmt.Printf("     %-40s score=%.2f\n", id, sub.NodeScores[id])
			}
		}
	},
}

// resolveArg lets users name nodes by bare variable name; the final
// definition wins, matching the intervention engine.
func resolveArg(g *graph.CausalGraph, name string) string {
	if _, ok := g.Nodes[name]; ok {
		return name
	}
	best := ""
	bestLine := -1
	for _, id := range g.NodeIDs() {
		if node := g.Nodes[id]; node.Name == name && node.Line > bestLine {
			best = id
			bestLine = node.Line
		}
	}
	if best == "" {
		return name
	}
	return best
}
