package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartcity/saferoute/internal/domain"
)

var (
	routeFrom   string
	routeTo     string
	routeMode   string
	routeSafety int
)

var routeCmd = &cobra.Command{
	Use:     "route",
	Short:   "Select the safest route once and print it as JSON",
	Example: `  saferoute route --from 17.3850,78.4867 --to 17.4065,78.4772 --mode walking --safety 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseLatLng(routeFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		end, err := parseLatLng(routeTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := buildServices(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer svc.close()

		best, err := svc.routes.SelectSafestRoute(cmd.Context(), domain.SafeRouteRequest{
			Start:       start,
			End:         end,
			Mode:        domain.TravelMode(routeMode),
			SafetyLevel: domain.SafetyLevel(routeSafety),
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(best.ToResponse())
	},
}

func init() {
	routeCmd.Flags().StringVar(&routeFrom, "from", "", "start as lat,lng")
	routeCmd.Flags().StringVar(&routeTo, "to", "", "destination as lat,lng")
	routeCmd.Flags().StringVar(&routeMode, "mode", string(domain.ModeDriving), "driving, walking or cycling")
	routeCmd.Flags().IntVar(&routeSafety, "safety", int(domain.SafetyDefault), "safety level 1-3")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")
}

func parseLatLng(s string) (domain.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.LatLng{}, fmt.Errorf("%w: expected lat,lng, got %q", domain.ErrInvalidInput, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.LatLng{}, fmt.Errorf("%w: bad latitude %q", domain.ErrInvalidInput, parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.LatLng{}, fmt.Errorf("%w: bad longitude %q", domain.ErrInvalidInput, parts[1])
	}
	return domain.LatLng{Lat: lat, Lng: lng}, nil
}
