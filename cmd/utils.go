package cmd

import (
	"os"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// fileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// ReadConfigFile loads filePath into v. An empty path falls back to the
// BRIDGE_CONFIG env variable, and no file at all is not an error.
func ReadConfigFile(v *viper.Viper, filePath string) error {
	if filePath == "" {
		filePath = os.Getenv(ENV_CONFIG_FILE_PATH)
	}
	if filePath == "" {
		logger.Debug("no config file, using defaults and env")
		return nil
	}
	if !FileExists(filePath) {
		return errors.Wrapf(common.ErrConfig, "config file not found: %s", filePath)
	}
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Mark(errors.Wrapf(err, "read config file %s", filePath), common.ErrConfig)
	}
	logger.WithField("file", filePath).Info("loaded config file")
	return nil
}
