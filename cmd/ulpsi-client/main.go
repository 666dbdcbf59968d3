// Command ulpsi-client is the client half of spec.md §6's CLI surface:
// given a path to a client_set.bin written by ulpsi-server's
// gen-client-set verb, it places those items into cuckoo tables,
// builds an encrypted query, submits it, and reports which items it
// recovered a label for.
//
// There is no network transport (see cmd/ulpsi-server's doc comment);
// this binary loads the serving layout from the same directory as the
// client set and answers its own query in-process.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Janmajayamall/ulpsi/internal/clientset"
	"github.com/Janmajayamall/ulpsi/internal/config"
	"github.com/Janmajayamall/ulpsi/internal/fhe"
	"github.com/Janmajayamall/ulpsi/internal/ulpsi"
	"github.com/Janmajayamall/ulpsi/internal/ulpsiclient"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path/to/client_set.bin>\n", os.Args[0])
		os.Exit(1)
	}
	setPath := os.Args[1]
	dir := filepath.Dir(setPath)

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

	items, err := loadClientSet(setPath)
	if err != nil {
		logrus.Fatalf("loading client set: %v", err)
	}
	params, layout, err := loadLayout(cfg, dir)
	if err != nil {
		logrus.Fatalf("loading serving layout from %s: %v", dir, err)
	}
	logrus.Infof("loaded %d client items against a %d-item serving layout", len(items), layout.Size())

	fheParams, err := fhe.NewParams(params.BFVLogDegree, params.BFVModuliBits, params.P)
	if err != nil {
		logrus.Fatalf("building BFV params: %v", err)
	}
	kgen := fhe.NewKeyGen(fheParams)
	sk := kgen.GenSecretKey()
	pk := kgen.GenPublicKey(sk)
	relinKeys := kgen.GenRelinKeys(sk)

	encoder := fhe.NewEncoder(fheParams)
	encryptor := fhe.NewEncryptor(fheParams, pk)
	decryptor := fhe.NewDecryptor(fheParams, sk)
	evaluator := fhe.NewEvaluator(fheParams, relinKeys, nil)

	tables, err := ulpsiclient.NewHashTables(params)
	if err != nil {
		logrus.Fatalf("building hash tables: %v", err)
	}
	failed, err := tables.Insert(items)
	if err != nil {
		logrus.Fatalf("inserting items: %v", err)
	}
	if len(failed) > 0 {
		logrus.Warnf("%d items failed cuckoo placement after eviction retries", len(failed))
	}

	query, err := tables.BuildQuery(encoder, encryptor)
	if err != nil {
		logrus.Fatalf("building query: %v", err)
	}
	ulpsiclient.ExpandQueryPowers(evaluator, relinKeys, query, params.SrcPowers)

	encLayout := ulpsi.EncodeLayout(layout, encoder)
	engine := ulpsi.NewEngine(encLayout, evaluator, relinKeys)
	constOne := encryptor.EncryptOnes(encoder)

	start := time.Now()
	resp, err := engine.Serve(query, constOne)
	if err != nil {
		logrus.Fatalf("serving query: %v", err)
	}
	logrus.Infof("query answered in %s", time.Since(start))

	// Per spec.md invariant I4, the protocol itself does not distinguish
	// a true membership hit from a (vanishingly unlikely) collision —
	// that requires an application-level check against an expected
	// label this binary has no way to know. So every decoded candidate
	// is printed as-is; it is up to the caller's own records to decide
	// which candidates are real.
	withCandidates := 0
	for _, item := range items {
		candidates, err := tables.DecodeResponse(resp, decryptor, encoder, item)
		if err != nil {
			logrus.Errorf("decoding response for %x: %v", item, err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		withCandidates++
		for _, label := range candidates {
			fmt.Printf("%x -> %x\n", item, label)
		}
	}
	logrus.Infof("%d/%d items produced at least one decode candidate", withCandidates, len(items))
}

func loadClientSet(path string) ([]ulpsi.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return clientset.Unmarshal(data)
}

func loadLayout(cfg *config.Config, dir string) (*ulpsi.Params, *ulpsi.ServingLayout, error) {
	paramsData, err := os.ReadFile(filepath.Join(dir, cfg.Server.ParamsFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", cfg.Server.ParamsFile, err)
	}
	params, err := ulpsi.UnmarshalParams(paramsData)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshaling params: %w", err)
	}

	layoutData, err := os.ReadFile(filepath.Join(dir, cfg.Server.LayoutFile))
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", cfg.Server.LayoutFile, err)
	}
	layout, err := ulpsi.UnmarshalServingLayout(layoutData, params)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshaling serving layout: %w", err)
	}
	return params, layout, nil
}
