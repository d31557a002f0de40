// Benchmark tool for testing the Kestrel matcher against labeled
// record-linkage data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/pairs.csv
//
// This tool:
//   1. Reads labeled record pairs (declared vs extracted fields, match label)
//   2. Runs each pair through the field comparison engine
//   3. Compares the matcher's verdict with the actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
//
// Expected CSV columns: a_name, b_name, a_id, b_id, a_dob, b_dob,
// a_phone, b_phone, is_match. Missing columns are skipped.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/kestrel/internal/compare"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// RecordPair is one labeled row: two renditions of the same fields and
// whether they belong to the same person.
type RecordPair struct {
	Declared  map[string]string
	Extracted map[string]string
	IsMatch   bool
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Match detected as match
	FalsePositives int64 // Non-match detected as match
	TrueNegatives  int64 // Non-match detected as non-match
	FalseNegatives int64 // Match detected as non-match (missed match!)

	TotalProcessed int64
	TotalMatches   int64
	TotalNonMatch  int64

	ProcessingTimeUs int64
}

// pairedColumns maps CSV column prefixes to comparison field names.
var pairedColumns = map[string]string{
	"name":  "full_name",
	"id":    "id_number",
	"dob":   "date_of_birth",
	"phone": "phone",
	"email": "email",
	"addr":  "address",
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled record-pair CSV file")
	limit := flag.Int("limit", 0, "Maximum pairs to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	threshold := flag.Float64("threshold", 0.85, "Weighted similarity above which a pair counts as a match")
	verbose := flag.Bool("verbose", false, "Print each pair result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/pairs.csv [-threshold 0.85]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL BENCHMARK - Identity Matching                ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:   %s\n", *csvPath)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Printf("Threshold:  %.2f\n", *threshold)
	fmt.Println()

	// Read labeled pairs
	fmt.Printf("Reading record pairs from %s...\n", *csvPath)
	pairs, err := readPairsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d pairs\n", len(pairs))

	// Count matches vs non-matches
	matchCount := 0
	for _, p := range pairs {
		if p.IsMatch {
			matchCount++
		}
	}
	fmt.Printf("  - Matches:     %d (%.2f%%)\n", matchCount, 100*float64(matchCount)/float64(len(pairs)))
	fmt.Printf("  - Non-matches: %d (%.2f%%)\n", len(pairs)-matchCount, 100*float64(len(pairs)-matchCount)/float64(len(pairs)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(pairs, *workers, *threshold, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func readPairsCSV(path string, limit int) ([]RecordPair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	labelCol, ok := colIndex["is_match"]
	if !ok {
		return nil, fmt.Errorf("CSV has no is_match column")
	}

	var pairs []RecordPair

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		pair := RecordPair{
			Declared:  map[string]string{},
			Extracted: map[string]string{},
			IsMatch:   record[labelCol] == "1",
		}

		for prefix, field := range pairedColumns {
			if i, ok := colIndex["a_"+prefix]; ok && record[i] != "" {
				pair.Declared[field] = record[i]
			}
			if i, ok := colIndex["b_"+prefix]; ok && record[i] != "" {
				pair.Extracted[field] = record[i]
			}
		}

		if len(pair.Declared) == 0 || len(pair.Extracted) == 0 {
			continue
		}
		pairs = append(pairs, pair)

		if limit > 0 && len(pairs) >= limit {
			break
		}
	}

	return pairs, nil
}

func runBenchmark(pairs []RecordPair, numWorkers int, threshold float64, verbose bool) *Metrics {
	metrics := &Metrics{}
	comparator := compare.NewComparator(compare.DefaultConfig())
	weights := domain.DefaultVerificationConfig().FieldWeights

	// Create work channel
	work := make(chan RecordPair, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for pair := range work {
				start := time.Now()
				results := comparator.CompareAll(pair.Declared, pair.Extracted, nil)
				similarity, _ := compare.Aggregate(results, weights)
				elapsed := time.Since(start).Microseconds()

				atomic.AddInt64(&metrics.ProcessingTimeUs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				// Track actual labels
				if pair.IsMatch {
					atomic.AddInt64(&metrics.TotalMatches, 1)
				} else {
					atomic.AddInt64(&metrics.TotalNonMatch, 1)
				}

				// Calculate confusion matrix
				predicted := similarity >= threshold
				actual := pair.IsMatch

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := pair.Declared["full_name"]
					if len(name) > 20 {
						name = name[:20]
					}
					fmt.Printf("%s %-20s | Fields: %d | Similarity: %.3f | Match: %-5v | Predicted: %v\n",
						status,
						name,
						len(results),
						similarity,
						pair.IsMatch,
						predicted,
					)
				}
			}
		}()
	}

	// Send work
	for _, pair := range pairs {
		work <- pair
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:   %d\n", m.TotalProcessed)
	fmt.Printf("   Total Matches:     %d\n", m.TotalMatches)
	fmt.Printf("   Total Non-Matches: %d\n", m.TotalNonMatch)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   MATCH       DIFFER")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  M  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           D  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 MATCHING METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of predicted matches, how many were real)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of real matches, how many did we find)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 MATCHING ANALYSIS\n")
	if m.TotalMatches > 0 {
		foundRate := float64(m.TruePositives) / float64(m.TotalMatches) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalMatches) * 100
		fmt.Printf("   Matches Found:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalMatches, foundRate)
		fmt.Printf("   Matches Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalMatches, missRate)
	}
	if m.TotalNonMatch > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalNonMatch) * 100
		fmt.Printf("   False Matches:    %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalNonMatch, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgUs := float64(m.ProcessingTimeUs) / float64(m.TotalProcessed)
		pps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f µs\n", avgUs)
		fmt.Printf("   Throughput:       %.2f pairs/sec\n", pps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - finding almost all true matches")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some true matches")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant matches being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most true matches are being missed!")
	}

	if precision >= 0.9 {
		fmt.Println("   ✅ Good precision - predicted matches are reliable")
	} else if precision >= 0.7 {
		fmt.Println("   ⚠️  Low precision - some false matches")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false matches")
	}

	fmt.Println()
}
