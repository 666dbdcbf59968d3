// Command ulpsi-server is the thin CLI surface spec.md §6 names for the
// serving side: build a serving layout for a synthetic server set of a
// given size, hand off a matching synthetic client set for the paired
// ulpsi-client binary to query, and load a built layout to confirm it
// is ready to answer queries.
//
// There is no network transport here (spec.md's non-goals exclude a
// production gRPC server); "start" loads and encodes a layout and
// reports its shape, standing in for the connection-setup step a real
// deployment would perform once per server process.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Janmajayamall/ulpsi/internal/catalog"
	"github.com/Janmajayamall/ulpsi/internal/clientset"
	"github.com/Janmajayamall/ulpsi/internal/config"
	"github.com/Janmajayamall/ulpsi/internal/fhe"
	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err == nil {
		logrus.SetLevel(level)
	}
	if cfg.Log.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	switch os.Args[1] {
	case "setup":
		n := mustAtoi(os.Args[2], "N")
		runSetup(cfg, n)
	case "gen-client-set":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		n := mustAtoi(os.Args[2], "N")
		clientSize := mustAtoi(os.Args[3], "client_size")
		runGenClientSet(cfg, n, clientSize)
	case "start":
		n := mustAtoi(os.Args[2], "N")
		runStart(cfg, n)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  %s setup <N>
  %s gen-client-set <N> <client_size>
  %s start <N>
`, os.Args[0], os.Args[0], os.Args[0])
}

func mustAtoi(s, name string) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		fmt.Fprintf(os.Stderr, "invalid %s: %q\n", name, s)
		os.Exit(1)
	}
	return n
}

// buildParams picks the params for a server set of size n: the default
// recipe for the scale the corpus's end-to-end scenarios exercise,
// shrunk to a faster EvalDegree/HTSize for small n so "setup 100"
// finishes quickly on a laptop. HTSize stays a multiple of SegRows
// (512 under the default CTSlots/PSIPtSlots), as Validate requires.
func buildParams(n int) *ulpsi.Params {
	p := ulpsi.DefaultParams()
	if n > 1000 {
		return p
	}
	p.HTSize = 512
	p.EvalDegree = 32
	p.SrcPowers = []uint32{1, 3, 11, 18, 32}
	return p
}

// genServerSet deterministically reconstructs the synthetic server set
// for size n from a seed derived from n alone, so gen-client-set can
// independently regenerate the same items (and therefore know which of
// them are true intersection members) without the server ever
// persisting plaintext items alongside its serving layout.
func genServerSet(n int) []ulpsi.ItemLabel {
	r := rand.New(rand.NewSource(int64(n)))
	pairs := make([]ulpsi.ItemLabel, n)
	for i := range pairs {
		var item ulpsi.Item
		var label ulpsi.Label
		r.Read(item[:])
		r.Read(label[:])
		pairs[i] = ulpsi.ItemLabel{Item: item, Label: label}
	}
	return pairs
}

func dataDir(cfg *config.Config, n int) string {
	return filepath.Join(cfg.Server.DataDir, fmt.Sprintf("%d", n))
}

func runSetup(cfg *config.Config, n int) {
	params := buildParams(n)
	pairs := genServerSet(n)

	pp, err := ulpsi.NewPreprocessor(params)
	if err != nil {
		logrus.Fatalf("building preprocessor: %v", err)
	}
	start := time.Now()
	layout, err := pp.Build(pairs)
	if err != nil {
		logrus.Fatalf("building serving layout: %v", err)
	}
	logrus.Infof("preprocessed %d items in %s", layout.Size(), time.Since(start))

	dir := dataDir(cfg, n)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.Fatalf("creating %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.Server.ParamsFile), ulpsi.MarshalParams(params), 0o644); err != nil {
		logrus.Fatalf("writing params: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, cfg.Server.LayoutFile), ulpsi.MarshalServingLayout(layout), 0o644); err != nil {
		logrus.Fatalf("writing serving layout: %v", err)
	}

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		logrus.Fatalf("opening catalog: %v", err)
	}
	defer cat.Close()
	err = cat.Record(catalog.Build{
		Name:      fmt.Sprintf("%d", n),
		DataDir:   dir,
		ItemCount: layout.Size(),
		NumTables: int(params.H),
		BuiltAt:   time.Now(),
	})
	if err != nil {
		logrus.Fatalf("recording build: %v", err)
	}

	for _, d := range layout.Diagnose() {
		logrus.Infof("table %d: %d segments, %d columns/InnerBox", d.ID, d.NumSegments, d.ColumnsPerIB)
	}
	logrus.Infof("setup complete: %s", dir)
}

func runGenClientSet(cfg *config.Config, n, clientSize int) {
	dir := dataDir(cfg, n)
	params, err := loadParams(dir, cfg)
	if err != nil {
		logrus.Fatalf("loading params for N=%d (did you run setup first?): %v", n, err)
	}

	serverPairs := genServerSet(n)
	memberCount := clientSize / 2
	if memberCount > len(serverPairs) {
		memberCount = len(serverPairs)
	}

	r := rand.New(rand.NewSource(int64(n) ^ int64(clientSize)))
	items := make([]ulpsi.Item, clientSize)
	perm := r.Perm(len(serverPairs))
	for i := 0; i < memberCount; i++ {
		items[i] = serverPairs[perm[i]].Item
	}
	for i := memberCount; i < clientSize; i++ {
		var item ulpsi.Item
		r.Read(item[:])
		items[i] = item
	}

	data := clientset.Marshal(items)
	path := filepath.Join(dir, "client_set.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logrus.Fatalf("writing %s: %v", path, err)
	}
	logrus.Infof("wrote %d items (%d members, H=%d) to %s", len(items), memberCount, params.H, path)
}

func runStart(cfg *config.Config, n int) {
	dir := dataDir(cfg, n)
	params, err := loadParams(dir, cfg)
	if err != nil {
		logrus.Fatalf("loading params: %v", err)
	}
	layoutData, err := os.ReadFile(filepath.Join(dir, cfg.Server.LayoutFile))
	if err != nil {
		logrus.Fatalf("reading serving layout: %v", err)
	}
	layout, err := ulpsi.UnmarshalServingLayout(layoutData, params)
	if err != nil {
		logrus.Fatalf("unmarshaling serving layout: %v", err)
	}

	fheParams, err := fhe.NewParams(params.BFVLogDegree, params.BFVModuliBits, params.P)
	if err != nil {
		logrus.Fatalf("building BFV params: %v", err)
	}
	start := time.Now()
	encoder := fhe.NewEncoder(fheParams)
	encLayout := ulpsi.EncodeLayout(layout, encoder)
	logrus.Infof("encoded layout for %d items in %s", layout.Size(), time.Since(start))
	_ = encLayout

	logrus.Infof("ulpsi-server ready: N=%d (%d ingested), H=%d, HTSize=%d, EvalDegree=%d", n, layout.Size(), params.H, params.HTSize, params.EvalDegree)
}

func loadParams(dir string, cfg *config.Config) (*ulpsi.Params, error) {
	data, err := os.ReadFile(filepath.Join(dir, cfg.Server.ParamsFile))
	if err != nil {
		return nil, err
	}
	return ulpsi.UnmarshalParams(data)
}
