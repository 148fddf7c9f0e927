package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// BenchmarkResult stores the results of a benchmark
type BenchmarkResult struct {
	BenchmarkType string
	SyncMode      string
	NumKeys       int
	ValueSize     int
	Mode          string
	Operations    int
	Duration      float64
	Throughput    float64
	Latency       float64 // microseconds per operation
	HitRate       float64 // For read benchmarks
	EntriesPerSec float64 // For scan and recovery benchmarks
	ReadRatio     float64 // For mixed benchmarks
	WriteRatio    float64 // For mixed benchmarks
	Timestamp     time.Time
}

var csvHeader = []string{
	"Timestamp", "BenchmarkType", "SyncMode", "NumKeys", "ValueSize", "Mode",
	"Operations", "Duration", "Throughput", "Latency", "HitRate",
	"EntriesPerSec", "ReadRatio", "WriteRatio",
}

// SaveResultCSV saves benchmark results to a CSV file
func SaveResultCSV(results []BenchmarkResult, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.Timestamp.Format(time.RFC3339),
			r.BenchmarkType,
			r.SyncMode,
			strconv.Itoa(r.NumKeys),
			strconv.Itoa(r.ValueSize),
			r.Mode,
			strconv.Itoa(r.Operations),
			fmt.Sprintf("%.2f", r.Duration),
			fmt.Sprintf("%.2f", r.Throughput),
			fmt.Sprintf("%.3f", r.Latency),
			fmt.Sprintf("%.2f", r.HitRate),
			fmt.Sprintf("%.2f", r.EntriesPerSec),
			fmt.Sprintf("%.1f", r.ReadRatio),
			fmt.Sprintf("%.1f", r.WriteRatio),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// LoadResultCSV loads benchmark results from a CSV file
func LoadResultCSV(filename string) ([]BenchmarkResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	// Skip header
	if len(records) <= 1 {
		return []BenchmarkResult{}, nil
	}
	records = records[1:]

	results := make([]BenchmarkResult, 0, len(records))
	for _, record := range records {
		if len(record) < len(csvHeader) {
			continue
		}

		timestamp, _ := time.Parse(time.RFC3339, record[0])
		numKeys, _ := strconv.Atoi(record[3])
		valueSize, _ := strconv.Atoi(record[4])
		operations, _ := strconv.Atoi(record[6])
		duration, _ := strconv.ParseFloat(record[7], 64)
		throughput, _ := strconv.ParseFloat(record[8], 64)
		latency, _ := strconv.ParseFloat(record[9], 64)
		hitRate, _ := strconv.ParseFloat(record[10], 64)
		entriesPerSec, _ := strconv.ParseFloat(record[11], 64)
		readRatio, _ := strconv.ParseFloat(record[12], 64)
		writeRatio, _ := strconv.ParseFloat(record[13], 64)

		results = append(results, BenchmarkResult{
			Timestamp:     timestamp,
			BenchmarkType: record[1],
			SyncMode:      record[2],
			NumKeys:       numKeys,
			ValueSize:     valueSize,
			Mode:          record[5],
			Operations:    operations,
			Duration:      duration,
			Throughput:    throughput,
			Latency:       latency,
			HitRate:       hitRate,
			EntriesPerSec: entriesPerSec,
			ReadRatio:     readRatio,
			WriteRatio:    writeRatio,
		})
	}

	return results, nil
}

// PrintResultTable prints a formatted table of benchmark results
func PrintResultTable(w io.Writer, results []BenchmarkResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results to display")
		return
	}

	const rule = "+-----------------+-----------+--------+------------+----------+-------------+"
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "| Benchmark Type  | Sync      | Ops    | Throughput | Latency  | Hit Rate    |")
	fmt.Fprintln(w, rule)

	for _, r := range results {
		hitRateStr := "-"
		switch r.BenchmarkType {
		case "Read":
			hitRateStr = fmt.Sprintf("%.2f%%", r.HitRate)
		case "Mixed":
			hitRateStr = fmt.Sprintf("R:%.0f/W:%.0f", r.ReadRatio, r.WriteRatio)
		}

		latencyUnit := "µs"
		latency := r.Latency
		if latency > 1000 {
			latencyUnit = "ms"
			latency /= 1000
		}

		fmt.Fprintf(w, "| %-15s | %-9s | %6d | %10.2f | %6.2f%s | %11s |\n",
			r.BenchmarkType,
			r.SyncMode,
			r.Operations,
			r.Throughput,
			latency, latencyUnit,
			hitRateStr)
	}
	fmt.Fprintln(w, rule)
}
