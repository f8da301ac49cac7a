package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

// geoCmd represents the geo command
var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Manage geographic areas",
}

var geoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List geographies",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := authedClient()
		if err != nil {
			return err
		}
		geos, err := intel.NewService(client).ListGeographies(cmd.Context())
		if err != nil {
			return err
		}
		if len(geos) == 0 {
			fmt.Println("No geographies yet. Add one with 'lbi geo add'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATE\tCENSUS REFRESHED\t")
		now := time.Now()
		for _, g := range geos {
			refreshed := "never"
			if g.CensusLastRefreshedAt != nil {
				refreshed = g.CensusLastRefreshedAt.Format("2006-01-02")
			}
			if g.CensusStale(now) {
				refreshed += " [STALE]"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", g.ID, g.Name, g.Type, g.StateCode, refreshed)
		}
		return w.Flush()
	},
}

var geoAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a geography",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		geoType, _ := cmd.Flags().GetString("type")
		stateCode, _ := cmd.Flags().GetString("state")
		county, _ := cmd.Flags().GetString("county")

		in := intel.GeographyCreate{
			Name:       name,
			Type:       intel.GeographyType(geoType),
			StateCode:  stateCode,
			CountyName: county,
		}
		if cmd.Flags().Changed("lat") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			in.Latitude = &lat
		}
		if cmd.Flags().Changed("lon") {
			lon, _ := cmd.Flags().GetFloat64("lon")
			in.Longitude = &lon
		}

		client, err := authedClient()
		if err != nil {
			return err
		}
		geo, err := intel.NewService(client).CreateGeography(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Printf("Created geography %d: %s, %s\n", geo.ID, geo.Name, geo.StateCode)
		return nil
	},
}

var geoRefreshCensusCmd = &cobra.Command{
	Use:   "refresh-census",
	Short: "Start a server-side census refresh run for a geography",
	RunE: func(cmd *cobra.Command, args []string) error {
		geographyID, _ := cmd.Flags().GetInt("geography")
		if geographyID <= 0 {
			return fmt.Errorf("--geography is required")
		}

		client, err := authedClient()
		if err != nil {
			return err
		}
		if err := intel.NewService(client).RefreshCensus(cmd.Context(), geographyID); err != nil {
			return err
		}
		fmt.Println("Census refresh started. Track it with 'lbi import runs'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geoCmd)
	geoCmd.AddCommand(geoListCmd)
	geoCmd.AddCommand(geoAddCmd)
	geoCmd.AddCommand(geoRefreshCensusCmd)

	geoAddCmd.Flags().StringP("name", "n", "", "Display name (e.g. Austin)")
	geoAddCmd.Flags().StringP("type", "t", "city", "Geography type: city, county or state")
	geoAddCmd.Flags().StringP("state", "s", "", "2-letter state code (e.g. TX)")
	geoAddCmd.Flags().String("county", "", "County name (optional)")
	geoAddCmd.Flags().Float64("lat", 0, "Latitude (optional)")
	geoAddCmd.Flags().Float64("lon", 0, "Longitude (optional)")

	geoRefreshCensusCmd.Flags().IntP("geography", "g", 0, "Geography ID")
}
