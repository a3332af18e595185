// binsig generates byte-level AV signatures for families of related
// binaries. It operates on similar binaries that have been bindiffed
// pairwise into a chain, with each sample's disassembly export next to
// the diff results.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"binsig/outputformats"
	"binsig/sig"
	"binsig/types"
)

type cliConfig struct {
	DetectionName        string
	TrimLength           int64
	TrimAlgorithm        string
	DisableNibbleMasking bool
	MinPieceLength       int
	Variant              int32
	FunctionIncludes     string
	FunctionExcludes     string
	Format               string
	ConfigPath           string
	MetricsAddr          string
	Verbose              bool
	DebugMatchChain      bool
}

func parseAddressList(list string) ([]types.Address, error) {
	var addresses []types.Address
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		address, err := strconv.ParseUint(strings.TrimPrefix(field, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hex address %q in function filter: %v", field, err)
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

func buildDefinition(config *cliConfig) (*types.SignatureDefinition, error) {
	definition := &types.SignatureDefinition{}
	if config.ConfigPath != "" {
		loaded, err := types.LoadSignatureDefinition(config.ConfigPath)
		if err != nil {
			return nil, err
		}
		definition = loaded
	}

	if config.DetectionName != "" {
		definition.DetectionName = config.DetectionName
	}
	definition.TrimLength = config.TrimLength
	definition.DisableNibbleMasking = config.DisableNibbleMasking
	if config.MinPieceLength > 0 {
		definition.MinPieceLength = config.MinPieceLength
	}
	if config.Variant != 0 {
		definition.Variant = config.Variant
	}

	algorithm, err := types.ParseTrimAlgorithm(config.TrimAlgorithm)
	if err != nil {
		return nil, err
	}
	definition.TrimAlgorithm = algorithm

	if config.FunctionIncludes != "" && config.FunctionExcludes != "" {
		return nil, fmt.Errorf("%w: function_includes and function_excludes are mutually exclusive",
			types.ErrInvalidArgument)
	}
	filterList := config.FunctionIncludes
	definition.FunctionFilter = types.FilterNone
	if filterList != "" {
		definition.FunctionFilter = types.FilterInclude
	} else if config.FunctionExcludes != "" {
		definition.FunctionFilter = types.FilterExclude
		filterList = config.FunctionExcludes
	}
	if filterList != "" {
		addresses, err := parseAddressList(filterList)
		if err != nil {
			return nil, err
		}
		definition.FilteredFunctions = addresses
	}
	return definition, nil
}

func run(config *cliConfig, args []string) error {
	level := LogLevelInfo
	if config.Verbose {
		level = LogLevelDebug
	}
	logger := NewLogger(level, false)

	if config.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(config.MetricsAddr, nil); err != nil {
				logger.Warning("metrics", "metrics server failed: %v", err)
			}
		}()
	}

	definition, err := buildDefinition(config)
	if err != nil {
		return err
	}

	signatureType, err := outputformats.ParseSignatureType(config.Format)
	if err != nil {
		return err
	}

	signature := &types.Signature{Definition: *definition}
	generator := sig.NewGenerator()
	generator.SetLogger(logger)
	generator.SetDebugMatchChain(config.DebugMatchChain)
	generator.AddDiffResults(args)
	if err := generator.Generate(signature); err != nil {
		return fmt.Errorf("failed to generate signature: %w", err)
	}

	formatter, err := outputformats.NewFormatter(signatureType)
	if err != nil {
		return err
	}
	if err := formatter.Format(signature); err != nil {
		return fmt.Errorf("failed to format signature: %w", err)
	}

	switch signatureType {
	case outputformats.ClamAV:
		fmt.Println(signature.ClamAV)
	default:
		fmt.Println(signature.Yara)
	}
	return nil
}

func setupCLI() *cobra.Command {
	var config cliConfig

	rootCmd := &cobra.Command{
		Use:   "binsig [flags] BINDIFF...",
		Short: "Generate byte signatures for sets of related binaries",
		Long: "binsig synthesizes a single byte signature that matches every sample\n" +
			"of a family of related binaries, from a chain of pairwise BinDiff\n" +
			"results and per-sample disassembly exports.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(&config, args)
		},
	}

	// Signature flags
	rootCmd.Flags().StringVar(&config.DetectionName, "detection_name", "Binsig_Signature", "Detection name of the signature")
	rootCmd.Flags().Int64Var(&config.TrimLength, "trim_length", int64(1)<<31-1, "Maximum length of the signature, subject to truncation due to limitations of the target format")
	rootCmd.Flags().StringVar(&config.TrimAlgorithm, "trim_algorithm", "RANDOM", "Signature trimming algorithm (NONE/FIRST/LAST/RANDOM/WEIGHTED_GREEDY/WEIGHTED)")
	rootCmd.Flags().BoolVar(&config.DisableNibbleMasking, "disable_nibble_masking", false, "Do not mask immediate bytes of instructions")
	rootCmd.Flags().IntVar(&config.MinPieceLength, "min_piece_length", 0, "Minimum literal-byte run to consider (0 uses the built-in default)")
	rootCmd.Flags().Int32Var(&config.Variant, "variant", 0, "Signature variant; seeds RANDOM trimming and the signature id hash")

	// Function filter flags
	rootCmd.Flags().StringVar(&config.FunctionIncludes, "function_includes", "", "Comma-separated hex addresses of functions in the first binary to consider; mutually exclusive with function_excludes")
	rootCmd.Flags().StringVar(&config.FunctionExcludes, "function_excludes", "", "Inverse of function_includes")

	// Output flags
	rootCmd.Flags().StringVar(&config.Format, "format", "yara", "Output signature format (yara/clamav)")
	rootCmd.Flags().StringVar(&config.ConfigPath, "config", "", "YAML file with a full signature definition; flags override it")
	rootCmd.Flags().StringVar(&config.MetricsAddr, "metrics_addr", "", "Address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().BoolVar(&config.Verbose, "verbose", false, "Enable debug output")
	rootCmd.Flags().BoolVar(&config.DebugMatchChain, "debug_match_chain", false, "Dump the match chain table after function candidate selection, also when no candidates are found")

	return rootCmd
}

func main() {
	if err := setupCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
