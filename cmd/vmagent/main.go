// Command vmagent is the VM Control Agent's entrypoint: config loading,
// wiring, and graceful shutdown, built on a cobra/pflag/viper CLI stack.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vmagent",
		Short: "per-VM control agent bridging a chat bus and a hypervisor driver",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to vmagent config file (yaml)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func initViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("VMAGENT")
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("vmagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vmagent")
	}
	return v
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
