package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"voxelcc/pkg/components"
	"voxelcc/pkg/config"
	"voxelcc/pkg/pipeline"
	"voxelcc/pkg/threshold"
	"voxelcc/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the 2D slices of the stack")
	configPath := flag.String("config", "voxelcc.yaml", "YAML configuration file (defaults are used if missing)")
	writeConfig := flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	connectivity := flag.Int("connectivity", 0, "Neighbor rule: 1 = faces only, up to 3 = faces, edges and corners")
	method := flag.String("method", "", "Threshold method: isodata, li, mean, minimum, otsu, triangle or yen")
	minSize := flag.Int("min-size", -1, "Remove components smaller than this many voxels before selection")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use for filtering")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save the volume after each stage")
	intermediaryDir := flag.String("intermediary-dir", "", "Directory to save intermediary results")
	maskDir := flag.String("mask-dir", "", "Directory to save the largest component as z slices")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the configuration file
	if *connectivity > 0 {
		cfg.Segmentation.Connectivity = *connectivity
	}
	if *method != "" {
		cfg.Segmentation.ThresholdMethod = *method
	}
	if *minSize >= 0 {
		cfg.Segmentation.MinObjectSize = *minSize
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *saveIntermediary {
		cfg.Output.SaveIntermediaryResults = true
	}
	if *intermediaryDir != "" {
		cfg.Output.IntermediaryDir = *intermediaryDir
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *writeConfig {
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", *configPath)
		return
	}

	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	m, err := threshold.ParseMethod(cfg.Segmentation.ThresholdMethod)
	if err != nil {
		log.Fatalf("Invalid threshold method: %v", err)
	}

	params := &pipeline.Params{
		InputDir:                *inputDir,
		NumCores:                cfg.Processing.NumCores,
		Rescale:                 cfg.Processing.Rescale,
		Filters:                 cfg.Filters,
		Method:                  m,
		Connectivity:            components.Connectivity(cfg.Segmentation.Connectivity),
		MinObjectSize:           cfg.Segmentation.MinObjectSize,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		Verbose:                 cfg.Output.Verbose,
	}

	p := pipeline.New(params)
	startTime := time.Now()
	if err := p.Process(); err != nil {
		log.Fatalf("Segmentation failed: %v", err)
	}
	elapsed := time.Since(startTime)

	report := p.Report()
	fmt.Printf("\nProcessed volume %v in %.2f seconds\n\n", report.Shape, elapsed.Seconds())

	fmt.Println("Thresholds:")
	for _, r := range report.Thresholds {
		marker := ""
		if r.Method == report.Method {
			marker = " (used)"
		}
		if r.Err != nil {
			fmt.Printf("* %s threshold: n/a (%v)\n", r.Method, r.Err)
			continue
		}
		fmt.Printf("* %s threshold: %.6f%s\n", r.Method, r.Value, marker)
	}

	fmt.Printf("\nIntensity mean: %.4f, std: %.4f\n", report.Mean, report.StdDev)
	fmt.Printf("Connected components: %d\n", report.Components)
	fmt.Printf("Volume largest obj: %d\n", report.LargestVoxels)
	fmt.Printf("Volume dense phase: %d\n", report.DenseVoxels)
	fmt.Printf("Largest obj fraction: %.2f%%\n", report.LargestFraction*100)

	if *maskDir != "" {
		viewer, err := visualization.NewMaskViewer(p.Mask())
		if err != nil {
			log.Fatalf("Failed to render mask: %v", err)
		}
		if err := viewer.SaveSliceSequence("z", *maskDir); err != nil {
			log.Printf("Warning: Failed to save mask slices: %v", err)
		} else {
			fmt.Printf("\nLargest component slices saved to: %s\n", *maskDir)
		}
	}
}
