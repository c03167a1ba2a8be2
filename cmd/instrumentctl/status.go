package main

import (
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-instrument/catalog"
	"github.com/arloliu/go-instrument/device"
)

type statusView struct {
	Class           string   `yaml:"class"`
	Low             string   `yaml:"low"`
	High            string   `yaml:"high"`
	LastQuestion    string   `yaml:"last_question,omitempty"`
	ExpectedPattern string   `yaml:"expected_pattern,omitempty"`
	MaxAllowed      string   `yaml:"max_allowed,omitempty"`
	Unexpected      int      `yaml:"unexpected"`
	MaxUnexpected   int      `yaml:"max_unexpected"`
	RecoveryLevel   int      `yaml:"recovery_level"`
	LastError       string   `yaml:"last_error,omitempty"`
	History         []string `yaml:"history,omitempty"`
}

func newStatusView(st device.Status) statusView {
	v := statusView{
		Class:           st.Class,
		Low:             st.Low.String(),
		High:            st.High.String(),
		LastQuestion:    st.LastQuestion,
		ExpectedPattern: st.ExpectedPattern,
		Unexpected:      st.Unexpected,
		MaxUnexpected:   st.MaxUnexpected,
		RecoveryLevel:   st.Recovery.Level,
		LastError:       st.LastError,
	}
	if st.MaxAllowed > 0 {
		v.MaxAllowed = st.MaxAllowed.String()
	}
	for _, c := range st.History {
		v.History = append(v.History, c.Action+" "+c.Outcome.String()+" "+c.Elapsed.Round(time.Millisecond).String())
	}

	return v
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var probe string

	cmd := &cobra.Command{
		Use:   "status CLASS",
		Short: "Probe a device and print its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mgr, err := opts.openManager(ctx, cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			dev, err := mgr.Device(args[0])
			if err != nil {
				return err
			}

			action := probe
			if action == "" && dev.Class().HasAction(catalog.ActionIdentify) {
				action = catalog.ActionIdentify
			}
			if action != "" {
				// the outcome is part of the printed status
				_, _ = dev.IssueCommand(ctx, action)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()

			return enc.Encode(newStatusView(dev.Status()))
		},
	}

	cmd.Flags().StringVar(&probe, "probe", "", "action issued before reading the status, identify by default")

	return cmd
}
