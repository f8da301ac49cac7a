package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

// channelCmd represents the channel command
var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Manage outreach channels (HOAs, schools, media outlets, ...)",
}

var channelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List channels, optionally filtered by geography",
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")

		client, err := authedClient()
		if err != nil {
			return err
		}
		channels, err := intel.NewService(client).ListChannels(cmd.Context(), geographyID)
		if err != nil {
			return err
		}
		if len(channels) == 0 {
			fmt.Println("No channels found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tCITY\tREACH\t")
		for _, ch := range channels {
			reach := "-"
			if ch.EstimatedReach != nil {
				reach = fmt.Sprintf("%d", *ch.EstimatedReach)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", ch.ID, ch.Name, ch.ChannelType, ch.City, reach)
		}
		return w.Flush()
	},
}

var channelAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		chType, _ := cmd.Flags().GetString("type")
		city, _ := cmd.Flags().GetString("city")
		state, _ := cmd.Flags().GetString("state")
		zip, _ := cmd.Flags().GetString("zip")
		website, _ := cmd.Flags().GetString("website")
		notes, _ := cmd.Flags().GetString("notes")

		in := intel.ChannelCreate{
			ChannelType: intel.ChannelType(strings.ToUpper(chType)),
			Name:        name,
			City:        city,
			State:       state,
			ZipCode:     zip,
			Website:     website,
			Notes:       notes,
		}
		if geographyID, _ := cmd.Flags().GetInt("geography"); geographyID > 0 {
			in.GeographyID = &geographyID
		}
		if cmd.Flags().Changed("reach") {
			reach, _ := cmd.Flags().GetInt("reach")
			in.EstimatedReach = &reach
		}

		client, err := authedClient()
		if err != nil {
			return err
		}
		ch, err := intel.NewService(client).CreateChannel(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Printf("Created channel %s: %s (%s)\n", ch.ID, ch.Name, ch.ChannelType)
		return nil
	},
}

var channelRmCmd = &cobra.Command{
	Use:   "rm <channel-id>",
	Short: "Delete a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			fmt.Printf("Delete channel %s? [y/N] ", id)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		client, err := authedClient()
		if err != nil {
			return err
		}
		if err := intel.NewService(client).DeleteChannel(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Println("Channel deleted")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(channelCmd)
	channelCmd.AddCommand(channelListCmd)
	channelCmd.AddCommand(channelAddCmd)
	channelCmd.AddCommand(channelRmCmd)

	channelListCmd.Flags().IntP("geography", "g", 0, "Filter by geography ID")

	channelAddCmd.Flags().StringP("name", "n", "", "Channel name")
	channelAddCmd.Flags().StringP("type", "t", "", "Channel type (HOA, PROPERTY_MANAGER, SCHOOL, CHURCH, VENUE, MEDIA, COMMUNITY_NEWSLETTER, OTHER)")
	channelAddCmd.Flags().IntP("geography", "g", 0, "Geography ID (optional)")
	channelAddCmd.Flags().String("city", "", "City (optional)")
	channelAddCmd.Flags().String("state", "", "State (optional)")
	channelAddCmd.Flags().String("zip", "", "ZIP code (optional)")
	channelAddCmd.Flags().Int("reach", 0, "Estimated reach (optional)")
	channelAddCmd.Flags().String("website", "", "Website (optional)")
	channelAddCmd.Flags().String("notes", "", "Notes (optional)")

	channelRmCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
