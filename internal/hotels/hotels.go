// Package hotels maintains the hotel catalog the console works on: a local
// ordered collection backed by the persisted cache, mutated optimistically
// and reconciled against the server.
package hotels

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/go-querystring/query"

	"teranga.app/internal/api"
)

// Hotel is one catalog record. Server ids are positive; an optimistic
// record carries a negative placeholder id until the server assigns one.
type Hotel struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	City           string    `json:"city"`
	Address        string    `json:"address"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	PricePerNight  float64   `json:"price_per_night"`
	Rating         float64   `json:"rating"`
	Image          string    `json:"image,omitempty"`
	RoomsCount     int       `json:"rooms_count"`
	AvailableRooms int       `json:"available_rooms"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Pending reports whether the record is still waiting for its server id.
func (h Hotel) Pending() bool { return h.ID < 0 }

// Filters narrow the catalog fetch. Serialized straight into the query
// string the API expects.
type Filters struct {
	Search    string  `url:"search,omitempty"`
	City      string  `url:"city,omitempty"`
	MinPrice  float64 `url:"price_per_night__gte,omitempty"`
	MaxPrice  float64 `url:"price_per_night__lte,omitempty"`
	MinRating float64 `url:"rating__gte,omitempty"`
}

func (f Filters) values() url.Values {
	v, err := query.Values(f)
	if err != nil {
		return url.Values{}
	}
	return v
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool { return f == Filters{} }

// Input carries the fields for a new hotel.
type Input struct {
	Name           string  `validate:"required"`
	Description    string  `validate:"-"`
	City           string  `validate:"required"`
	Address        string  `validate:"-"`
	Phone          string  `validate:"-"`
	Email          string  `validate:"omitempty,email"`
	PricePerNight  float64 `validate:"gte=0"`
	Rating         float64 `validate:"gte=0,lte=5"`
	RoomsCount     int     `validate:"gte=0"`
	AvailableRooms int     `validate:"gte=0"`
	IsActive       bool
	Image          *api.File
}

// record synthesizes the optimistic local copy for the given placeholder.
// The image stays empty: its final form is only known after upload.
func (in Input) record(placeholder int64, now time.Time) Hotel {
	return Hotel{
		ID:             placeholder,
		Name:           in.Name,
		Description:    in.Description,
		City:           in.City,
		Address:        in.Address,
		Phone:          in.Phone,
		Email:          in.Email,
		PricePerNight:  in.PricePerNight,
		Rating:         in.Rating,
		RoomsCount:     in.RoomsCount,
		AvailableRooms: in.AvailableRooms,
		IsActive:       in.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (in Input) request() api.Request {
	if in.Image != nil {
		return api.Request{
			Method: http.MethodPost,
			Path:   "/hotels/",
			Multipart: &api.Multipart{
				Fields: in.formFields(),
				Files:  []api.File{*in.Image},
			},
		}
	}
	return api.Request{
		Method: http.MethodPost,
		Path:   "/hotels/",
		Body:   in.jsonBody(),
	}
}

func (in Input) formFields() map[string]string {
	return map[string]string{
		"name":            in.Name,
		"description":     in.Description,
		"city":            in.City,
		"address":         in.Address,
		"phone":           in.Phone,
		"email":           in.Email,
		"price_per_night": strconv.FormatFloat(in.PricePerNight, 'f', -1, 64),
		"rating":          strconv.FormatFloat(in.Rating, 'f', -1, 64),
		"rooms_count":     strconv.Itoa(in.RoomsCount),
		"available_rooms": strconv.Itoa(in.AvailableRooms),
		"is_active":       strconv.FormatBool(in.IsActive),
	}
}

func (in Input) jsonBody() map[string]any {
	return map[string]any{
		"name":            in.Name,
		"description":     in.Description,
		"city":            in.City,
		"address":         in.Address,
		"phone":           in.Phone,
		"email":           in.Email,
		"price_per_night": in.PricePerNight,
		"rating":          in.Rating,
		"rooms_count":     in.RoomsCount,
		"available_rooms": in.AvailableRooms,
		"is_active":       in.IsActive,
	}
}

// Patch is a partial update: only set pointers are sent, and the image is
// never part of the optimistic view.
type Patch struct {
	Name           *string  `validate:"-"`
	Description    *string  `validate:"-"`
	City           *string  `validate:"-"`
	Address        *string  `validate:"-"`
	Phone          *string  `validate:"-"`
	Email          *string  `validate:"omitempty"`
	PricePerNight  *float64 `validate:"-"`
	Rating         *float64 `validate:"-"`
	RoomsCount     *int     `validate:"-"`
	AvailableRooms *int     `validate:"-"`
	IsActive       *bool
	Image          *api.File
}

// applyTo writes the provided non-file fields onto h.
func (p Patch) applyTo(h *Hotel) {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.City != nil {
		h.City = *p.City
	}
	if p.Address != nil {
		h.Address = *p.Address
	}
	if p.Phone != nil {
		h.Phone = *p.Phone
	}
	if p.Email != nil {
		h.Email = *p.Email
	}
	if p.PricePerNight != nil {
		h.PricePerNight = *p.PricePerNight
	}
	if p.Rating != nil {
		h.Rating = *p.Rating
	}
	if p.RoomsCount != nil {
		h.RoomsCount = *p.RoomsCount
	}
	if p.AvailableRooms != nil {
		h.AvailableRooms = *p.AvailableRooms
	}
	if p.IsActive != nil {
		h.IsActive = *p.IsActive
	}
}

func (p Patch) request(id int64) api.Request {
	path := fmt.Sprintf("/hotels/%d/", id)
	if p.Image != nil {
		return api.Request{
			Method: http.MethodPatch,
			Path:   path,
			Multipart: &api.Multipart{
				Fields: p.formFields(),
				Files:  []api.File{*p.Image},
			},
		}
	}
	return api.Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   p.jsonBody(),
	}
}

func (p Patch) formFields() map[string]string {
	fields := make(map[string]string)
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.City != nil {
		fields["city"] = *p.City
	}
	if p.Address != nil {
		fields["address"] = *p.Address
	}
	if p.Phone != nil {
		fields["phone"] = *p.Phone
	}
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if p.PricePerNight != nil {
		fields["price_per_night"] = strconv.FormatFloat(*p.PricePerNight, 'f', -1, 64)
	}
	if p.Rating != nil {
		fields["rating"] = strconv.FormatFloat(*p.Rating, 'f', -1, 64)
	}
	if p.RoomsCount != nil {
		fields["rooms_count"] = strconv.Itoa(*p.RoomsCount)
	}
	if p.AvailableRooms != nil {
		fields["available_rooms"] = strconv.Itoa(*p.AvailableRooms)
	}
	if p.IsActive != nil {
		fields["is_active"] = strconv.FormatBool(*p.IsActive)
	}
	return fields
}

func (p Patch) jsonBody() map[string]any {
	body := make(map[string]any)
	if p.Name != nil {
		body["name"] = *p.Name
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.City != nil {
		body["city"] = *p.City
	}
	if p.Address != nil {
		body["address"] = *p.Address
	}
	if p.Phone != nil {
		body["phone"] = *p.Phone
	}
	if p.Email != nil {
		body["email"] = *p.Email
	}
	if p.PricePerNight != nil {
		body["price_per_night"] = *p.PricePerNight
	}
	if p.Rating != nil {
		body["rating"] = *p.Rating
	}
	if p.RoomsCount != nil {
		body["rooms_count"] = *p.RoomsCount
	}
	if p.AvailableRooms != nil {
		body["available_rooms"] = *p.AvailableRooms
	}
	if p.IsActive != nil {
		body["is_active"] = *p.IsActive
	}
	return body
}
