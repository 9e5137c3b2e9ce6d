package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"teranga.app/internal/api"
	"teranga.app/internal/hotels"
)

func (a *app) hotelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotels",
		Short: "Manage the hotel catalog",
	}
	cmd.AddCommand(
		a.hotelsListCmd(),
		a.hotelsCreateCmd(),
		a.hotelsUpdateCmd(),
		a.hotelsDeleteCmd(),
	)
	return cmd
}

func (a *app) hotelsStore() *hotels.Store {
	return hotels.New(a.client, a.caches, a.confirm)
}

func (a *app) hotelsListCmd() *cobra.Command {
	var filters hotels.Filters
	var force bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hotels, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			store := a.hotelsStore()
			var err error
			if filters.IsZero() {
				err = store.Fetch(cmd.Context(), force)
			} else {
				err = store.SetFilters(cmd.Context(), filters)
			}
			if err != nil {
				return err
			}
			items := store.Hotels()
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No hotels")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCITY\tPRICE/NIGHT\tRATING\tROOMS\tACTIVE")
			for _, h := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.0f\t%.1f\t%d/%d\t%v\n",
					h.ID, h.Name, h.City, h.PricePerNight, h.Rating,
					h.AvailableRooms, h.RoomsCount, h.IsActive)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filters.Search, "search", "", "free-text search")
	cmd.Flags().StringVar(&filters.City, "city", "", "filter by city")
	cmd.Flags().Float64Var(&filters.MinPrice, "min-price", 0, "minimum price per night")
	cmd.Flags().Float64Var(&filters.MaxPrice, "max-price", 0, "maximum price per night")
	cmd.Flags().Float64Var(&filters.MinRating, "min-rating", 0, "minimum rating")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the local cache")
	return cmd
}

func (a *app) hotelsCreateCmd() *cobra.Command {
	var input hotels.Input
	var imagePath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a hotel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if imagePath != "" {
				file, err := readImage(imagePath)
				if err != nil {
					return err
				}
				input.Image = file
			}
			created, err := a.hotelsStore().Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created hotel %d: %s (%s)\n", created.ID, created.Name, created.City)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "hotel name")
	cmd.Flags().StringVar(&input.Description, "description", "", "description")
	cmd.Flags().StringVar(&input.City, "city", "", "city")
	cmd.Flags().StringVar(&input.Address, "address", "", "street address")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&input.Email, "email", "", "contact email")
	cmd.Flags().Float64Var(&input.PricePerNight, "price", 0, "price per night")
	cmd.Flags().Float64Var(&input.Rating, "rating", 0, "rating 0-5")
	cmd.Flags().IntVar(&input.RoomsCount, "rooms", 0, "total rooms")
	cmd.Flags().IntVar(&input.AvailableRooms, "available-rooms", 0, "available rooms")
	cmd.Flags().BoolVar(&input.IsActive, "active", true, "hotel accepts bookings")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a cover image")
	return cmd
}

func (a *app) hotelsUpdateCmd() *cobra.Command {
	var patch hotels.Patch
	var imagePath string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update hotel fields; only the flags you pass are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad hotel id %q", args[0])
			}
			clearUnsetPatchFlags(cmd, &patch)
			if imagePath != "" {
				file, err := readImage(imagePath)
				if err != nil {
					return err
				}
				patch.Image = file
			}
			store := a.hotelsStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			updated, err := store.Update(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated hotel %d: %s\n", updated.ID, updated.Name)
			return nil
		},
	}
	patch.Name = new(string)
	patch.Description = new(string)
	patch.City = new(string)
	patch.Address = new(string)
	patch.Phone = new(string)
	patch.Email = new(string)
	patch.PricePerNight = new(float64)
	patch.Rating = new(float64)
	patch.RoomsCount = new(int)
	patch.AvailableRooms = new(int)
	patch.IsActive = new(bool)
	cmd.Flags().StringVar(patch.Name, "name", "", "hotel name")
	cmd.Flags().StringVar(patch.Description, "description", "", "description")
	cmd.Flags().StringVar(patch.City, "city", "", "city")
	cmd.Flags().StringVar(patch.Address, "address", "", "street address")
	cmd.Flags().StringVar(patch.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(patch.Email, "email", "", "contact email")
	cmd.Flags().Float64Var(patch.PricePerNight, "price", 0, "price per night")
	cmd.Flags().Float64Var(patch.Rating, "rating", 0, "rating 0-5")
	cmd.Flags().IntVar(patch.RoomsCount, "rooms", 0, "total rooms")
	cmd.Flags().IntVar(patch.AvailableRooms, "available-rooms", 0, "available rooms")
	cmd.Flags().BoolVar(patch.IsActive, "active", false, "hotel accepts bookings")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a cover image")
	return cmd
}

// clearUnsetPatchFlags nils out every patch field whose flag was not passed,
// so the request body carries only explicit changes.
func clearUnsetPatchFlags(cmd *cobra.Command, patch *hotels.Patch) {
	if !cmd.Flags().Changed("name") {
		patch.Name = nil
	}
	if !cmd.Flags().Changed("description") {
		patch.Description = nil
	}
	if !cmd.Flags().Changed("city") {
		patch.City = nil
	}
	if !cmd.Flags().Changed("address") {
		patch.Address = nil
	}
	if !cmd.Flags().Changed("phone") {
		patch.Phone = nil
	}
	if !cmd.Flags().Changed("email") {
		patch.Email = nil
	}
	if !cmd.Flags().Changed("price") {
		patch.PricePerNight = nil
	}
	if !cmd.Flags().Changed("rating") {
		patch.Rating = nil
	}
	if !cmd.Flags().Changed("rooms") {
		patch.RoomsCount = nil
	}
	if !cmd.Flags().Changed("available-rooms") {
		patch.AvailableRooms = nil
	}
	if !cmd.Flags().Changed("active") {
		patch.IsActive = nil
	}
}

func (a *app) hotelsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a hotel (asks for confirmation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad hotel id %q", args[0])
			}
			store := a.hotelsStore()
			if err := store.Fetch(cmd.Context(), false); err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted hotel %d\n", id)
			return nil
		},
	}
}

func readImage(path string) (*api.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &api.File{Field: "image", Name: filepath.Base(path), Content: content}, nil
}
