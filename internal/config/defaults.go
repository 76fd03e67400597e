package config

const (
	defaultDataDir               = "~/pact/data"
	defaultMetadataDir           = "~/pact/metadata"
	defaultRegistryDB            = "~/.local/share/pact/registry.db"
	defaultPointStoreDir         = "~/.local/share/pact/points"
	defaultLogDir                = "~/.local/share/pact/logs"
	defaultSiteLabel             = "NREL Golden"
	defaultLatitude              = 39.7406
	defaultLongitude             = -105.1774
	defaultElevation             = 1795
	defaultUTCOffsetHours        = -7
	defaultSampleIntervalSeconds = 60
	defaultMinIrradiance         = 100
	defaultMinInsolation         = 4000
	defaultMinUpFraction         = 0.80
	defaultT80Threshold          = 0.80
	defaultT80RunLength          = 3
	defaultRollingWindow         = 5
	defaultAPIBind               = "127.0.0.1:7480"
	defaultAPIReadTimeout        = 15
	defaultAPIWriteTimeout       = 60
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
)

// T80 reference policies.
const (
	ReferencePeak    = "peak"
	ReferenceInitial = "initial"
)

// Rolling median alignments.
const (
	AlignTrailing = "trailing"
	AlignCentered = "centered"
)

// Collaborator selectors.
const (
	RegistryJSON   = "json"
	RegistrySQLite = "sqlite"
	PointsCSV      = "csv"
	PointsBadger   = "badger"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:       defaultDataDir,
			MetadataDir:   defaultMetadataDir,
			RegistryDB:    defaultRegistryDB,
			PointStoreDir: defaultPointStoreDir,
			LogDir:        defaultLogDir,
		},
		Site: Site{
			Label:                 defaultSiteLabel,
			Latitude:              defaultLatitude,
			Longitude:             defaultLongitude,
			Elevation:             defaultElevation,
			UTCOffsetHours:        defaultUTCOffsetHours,
			SampleIntervalSeconds: defaultSampleIntervalSeconds,
		},
		Analysis: Analysis{
			MinIrradiance:    defaultMinIrradiance,
			MinInsolation:    defaultMinInsolation,
			MinUpFraction:    defaultMinUpFraction,
			T80Reference:     ReferencePeak,
			T80Threshold:     defaultT80Threshold,
			T80RunLength:     defaultT80RunLength,
			RollingWindow:    defaultRollingWindow,
			RollingAlignment: AlignTrailing,
		},
		Sources: Sources{
			Registry: RegistryJSON,
			Points:   PointsCSV,
		},
		API: API{
			Bind:                defaultAPIBind,
			ReadTimeoutSeconds:  defaultAPIReadTimeout,
			WriteTimeoutSeconds: defaultAPIWriteTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
