package config

const (
	defaultConfigPath                 = "~/.config/trapsort/config.toml"
	defaultLogDir                     = "~/.local/share/trapsort/logs"
	defaultLedgerPath                 = "~/.local/share/trapsort/runs.db"
	defaultLogRetentionDays           = 60
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultIndepEventIntervalMinutes  = 5
	defaultLowConfidenceProbThreshold = 0.2
	defaultClassifiedSnipsName        = "classified_snips"
	defaultOutputTableName            = "species_site_table"
	defaultClassMapName               = "class_map.yaml"
	defaultSiteTableName              = "site_table.csv"

	// RemovalFlag keeps rows whose file left the folder tree and marks them.
	RemovalFlag = "flag"
	// RemovalDrop deletes rows whose file left the folder tree.
	RemovalDrop = "drop"
)

var (
	defaultProbabilityBins  = []int{90, 70, 50, 30, 0}
	defaultNonAnimalClasses = []string{"blank", "human", "person", "vehicle", "other_object"}
	defaultIgnoreFolders    = []string{"other_object"}
)

// Default returns a Config populated with repository defaults. Paths that
// derive from service_dir are filled in during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Pipeline: Pipeline{
			ProbabilityBins:            append([]int(nil), defaultProbabilityBins...),
			IndepEventIntervalMinutes:  defaultIndepEventIntervalMinutes,
			LowConfidenceProbThreshold: defaultLowConfidenceProbThreshold,
			RemovalPolicy:              RemovalFlag,
			NonAnimalClasses:           append([]string(nil), defaultNonAnimalClasses...),
			IgnoreFolders:              append([]string(nil), defaultIgnoreFolders...),
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
