package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/models"
)

var (
	recordResult      string
	recordClinician   string
	recordInterpreted string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record emotion, mood and test signals",
}

var recordEmotionCmd = &cobra.Command{
	Use:   "emotion <userId> <emotion> <intensity 0-1>",
	Short: "Record an emotion log",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		intensity, err := parseScore(args[2])
		if err != nil {
			return err
		}
		rec, err := apiClient.RecordEmotion(cmd.Context(), args[0], args[1], intensity)
		if err != nil {
			return fmt.Errorf("record emotion: %w", err)
		}
		return recorded(cmd, rec.ID)
	},
}

var recordMoodCmd = &cobra.Command{
	Use:   "mood <userId> <category> <score 1-10>",
	Short: "Record a mood score",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := parseScore(args[2])
		if err != nil {
			return err
		}
		rec, err := apiClient.RecordMood(cmd.Context(), args[0], args[1], score)
		if err != nil {
			return fmt.Errorf("record mood: %w", err)
		}
		return recorded(cmd, rec.ID)
	},
}

var recordTestCmd = &cobra.Command{
	Use:   "test <userId> <testName> <score 0-100>",
	Short: "Record a self-taken test result",
	Long: `Record a test result. With --clinician the result is a clinician-assigned
test for a client and feeds clinical reports.

Examples:
  ravan record test user-42 GAD-7 40 --result mild
  ravan record test client-7 BDI-II 35 --clinician dr-1 --interpretation moderate`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := parseScore(args[2])
		if err != nil {
			return err
		}
		if recordClinician != "" {
			rec, err := apiClient.RecordClientTestResult(cmd.Context(), models.ClientTestResult{
				ClientID:       args[0],
				ClinicianID:    recordClinician,
				TestName:       args[1],
				Score:          score,
				Interpretation: recordInterpreted,
			})
			if err != nil {
				return fmt.Errorf("record client test: %w", err)
			}
			return recorded(cmd, rec.ID)
		}
		rec, err := apiClient.RecordTestResult(cmd.Context(), args[0], args[1], score, recordResult)
		if err != nil {
			return fmt.Errorf("record test: %w", err)
		}
		return recorded(cmd, rec.ID)
	},
}

func init() {
	recordTestCmd.Flags().StringVar(&recordResult, "result", "", "short result label")
	recordTestCmd.Flags().StringVar(&recordClinician, "clinician", "", "record as a clinician-assigned test")
	recordTestCmd.Flags().StringVar(&recordInterpreted, "interpretation", "", "clinician interpretation")

	recordCmd.AddCommand(recordEmotionCmd)
	recordCmd.AddCommand(recordMoodCmd)
	recordCmd.AddCommand(recordTestCmd)
}

func parseScore(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	return v, nil
}

func recorded(cmd *cobra.Command, id string) error {
	p := newPrinter(cmd.OutOrStdout())
	p.printf("%s %s\n", p.success("✓ recorded"), id)
	return nil
}
