package store

// Config holds configuration for the DocumentStore.
type Config struct {
	// TableName is the name of the documents table. Required.
	TableName string

	// DateIndex is the name of the time-based GSI.
	// Default: "GSI1"
	DateIndex string

	// PresetIndex is the name of the preset (type, name) GSI.
	// Default: "GSI2"
	PresetIndex string

	// ScanPageSize is the page size used by internal paged scan and
	// delete loops.
	// Default: 10
	ScanPageSize int32
}

// DefaultConfig returns defaults matching the standard table layout.
func DefaultConfig(tableName string) Config {
	return Config{
		TableName:    tableName,
		DateIndex:    "GSI1",
		PresetIndex:  "GSI2",
		ScanPageSize: 10,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() error {
	if c.TableName == "" {
		return ErrMissingTableName
	}
	if c.DateIndex == "" {
		c.DateIndex = "GSI1"
	}
	if c.PresetIndex == "" {
		c.PresetIndex = "GSI2"
	}
	if c.ScanPageSize < 1 {
		c.ScanPageSize = 10
	}
	return nil
}
