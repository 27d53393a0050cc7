package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bikestreets_backend/internal/debuglog"
	"bikestreets_backend/internal/directions"
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/validator"

	"github.com/spf13/cobra"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request routes between two points",
		Example: `  routectl request --from 39.7530,-105.0413 --to 39.7550,-105.0000 --to-name "Coffee Shop"
  routectl request --from 39.7530,-105.0413 --to 39.7550,-105.0 --json --no-record`,
		RunE: runRequest,
	}
	cmd.Flags().String("from", "", "Origin as lat,lon")
	cmd.Flags().String("to", "", "Destination as lat,lon")
	cmd.Flags().String("from-name", "Current Location", "Origin name recorded in the debug log")
	cmd.Flags().String("to-name", "No Name", "Destination name recorded in the debug log")
	cmd.Flags().String("host", "", "Directions host (overrides DIRECTIONS_HOST)")
	cmd.Flags().String("scheme", "", "Directions scheme (overrides DIRECTIONS_SCHEME)")
	cmd.Flags().String("profile", "", "Routing profile (overrides DIRECTIONS_PROFILE)")
	cmd.Flags().Bool("json", false, "Print the raw response")
	cmd.Flags().Bool("no-record", false, "Do not write a debug log entry")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runRequest(cmd *cobra.Command, _ []string) error {
	cfg, log, err := settings(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		cfg.DirectionsHost = v
	}
	if v, _ := cmd.Flags().GetString("scheme"); v != "" {
		cfg.DirectionsScheme = v
	}
	if v, _ := cmd.Flags().GetString("profile"); v != "" {
		cfg.DirectionsProfile = v
	}

	val := validator.New()
	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	origin, err := parseCoordinate(val, fromFlag)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	destination, err := parseCoordinate(val, toFlag)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}
	fromName, _ := cmd.Flags().GetString("from-name")
	toName, _ := cmd.Flags().GetString("to-name")

	var recorder directions.Recorder
	if noRecord, _ := cmd.Flags().GetBool("no-record"); !noRecord {
		recorder = debuglog.NewStore(cfg, log)
	}
	client := directions.NewClient(cfg, nil, recorder, log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := client.RequestRoute(ctx, origin, destination, fromName, toName)
	client.Wait()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(out, "%s -> %s: %d route(s), code %s\n", fromName, toName, len(resp.Routes), resp.Code)
	for i, route := range resp.Routes {
		fmt.Fprintf(out, "  Route %d: %.2f km, %.0f min, %s\n", i+1, route.Distance/1000, route.Duration/60, route.Geometry.Polyline())
	}
	return nil
}

// parseCoordinate reads "lat,lon".
func parseCoordinate(val *validator.Validator, raw string) (osrm.Coordinate, error) {
	latRaw, lonRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return osrm.Coordinate{}, fmt.Errorf("expected lat,lon, got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return osrm.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if err != nil {
		return osrm.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	if err := val.Var(lat, "latitude"); err != nil {
		return osrm.Coordinate{}, fmt.Errorf("latitude %v out of range", lat)
	}
	if err := val.Var(lon, "longitude"); err != nil {
		return osrm.Coordinate{}, fmt.Errorf("longitude %v out of range", lon)
	}
	return osrm.Coordinate{Latitude: lat, Longitude: lon}, nil
}
