// Package recommend ranks active listings for a guest from the listings
// behind their past bookings.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// MaxResults is the number of listings returned.
const MaxResults = 12

// Per-dimension weights.
const (
	WeightCategory     = 35.0
	WeightSubcategory  = 25.0
	WeightPlaceType    = 20.0
	WeightServiceType  = 20.0
	WeightActivityType = 20.0
	WeightLocation     = 18.0
	WeightPrice        = 15.0
	WeightAmenities    = 12.0
	WeightServices     = 8.0
)

// Input holds everything the scorer needs. Bookings should already be
// restricted to confirmed or completed ones; other statuses are ignored.
type Input struct {
	Bookings       []models.Booking
	BookedListings []models.Listing
	Active         []models.Listing
}

// Recommendation is one ranked listing with the reasons it scored.
type Recommendation struct {
	Listing models.Listing `json:"listing"`
	Score   float64        `json:"score"`
	Reasons []string       `json:"reasons,omitempty"`
}

// Recommend returns up to MaxResults listings ranked by descending score.
// Without qualifying bookings it returns the newest active listings, unscored.
func Recommend(in Input) []Recommendation {
	qualifying := qualifyingListingIDs(in.Bookings)
	if len(qualifying) == 0 {
		return newest(in.Active)
	}

	prefs := buildPreferences(in.Bookings, in.BookedListings, qualifying)

	var out []Recommendation
	for _, l := range in.Active {
		if l.Status != models.ListingStatusActive {
			continue
		}
		if _, booked := prefs.booked[l.ID]; booked {
			continue
		}
		score, reasons := prefs.score(&l)
		if score <= 0 {
			continue
		}
		out = append(out, Recommendation{Listing: l, Score: score, Reasons: reasons})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

func qualifyingListingIDs(bookings []models.Booking) map[utils.SixID]struct{} {
	ids := make(map[utils.SixID]struct{})
	for _, b := range bookings {
		if b.Status == models.BookingStatusConfirmed || b.Status == models.BookingStatusCompleted {
			ids[b.ListingID] = struct{}{}
		}
	}
	return ids
}

func newest(active []models.Listing) []Recommendation {
	pool := make([]models.Listing, 0, len(active))
	for _, l := range active {
		if l.Status == models.ListingStatusActive {
			pool = append(pool, l)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].CreatedAt.After(pool[j].CreatedAt) })
	if len(pool) > MaxResults {
		pool = pool[:MaxResults]
	}
	out := make([]Recommendation, len(pool))
	for i, l := range pool {
		out[i] = Recommendation{Listing: l}
	}
	return out
}

// preferences are the aggregates derived from the listings behind each
// qualifying booking. A listing booked several times counts once per booking.
type preferences struct {
	category, subcategory, placeType, serviceType, activityType string
	location                                                    string

	minPrice, maxPrice, avgPrice float64
	hasPrice                     bool

	amenities map[string]struct{}
	services  map[string]struct{}
	booked    map[utils.SixID]struct{}
}

func buildPreferences(bookings []models.Booking, booked []models.Listing, qualifying map[utils.SixID]struct{}) *preferences {
	var category, subcategory, placeType, serviceType, activityType, location counter
	p := &preferences{
		amenities: make(map[string]struct{}),
		services:  make(map[string]struct{}),
		booked:    make(map[utils.SixID]struct{}, len(qualifying)),
	}
	for id := range qualifying {
		p.booked[id] = struct{}{}
	}

	byID := make(map[utils.SixID]*models.Listing, len(booked))
	for i := range booked {
		byID[booked[i].ID] = &booked[i]
	}

	var priceSum float64
	var priceCount int
	for _, b := range bookings {
		if b.Status != models.BookingStatusConfirmed && b.Status != models.BookingStatusCompleted {
			continue
		}
		l, ok := byID[b.ListingID]
		if !ok {
			continue
		}
		category.add(l.Category)
		subcategory.add(l.Subcategory)
		placeType.add(l.PlaceType)
		serviceType.add(l.ServiceType)
		activityType.add(l.ActivityType)
		for _, tok := range LocationTokens(l.Location) {
			location.add(tok)
		}

		if l.Price > 0 {
			if !p.hasPrice || l.Price < p.minPrice {
				p.minPrice = l.Price
			}
			if !p.hasPrice || l.Price > p.maxPrice {
				p.maxPrice = l.Price
			}
			p.hasPrice = true
			priceSum += l.Price
			priceCount++
		}

		for _, a := range l.Amenities {
			p.amenities[a] = struct{}{}
		}
		for _, s := range l.Services {
			p.services[s] = struct{}{}
		}
	}
	if priceCount > 0 {
		p.avgPrice = priceSum / float64(priceCount)
	}

	p.category = category.top()
	p.subcategory = subcategory.top()
	p.placeType = placeType.top()
	p.serviceType = serviceType.top()
	p.activityType = activityType.top()
	p.location = location.top()
	return p
}

func (p *preferences) score(l *models.Listing) (float64, []string) {
	var score float64
	var reasons []string
	match := func(pref, value string, weight float64, reason string) {
		if pref != "" && value == pref {
			score += weight
			reasons = append(reasons, fmt.Sprintf(reason, value))
		}
	}

	match(p.category, l.Category, WeightCategory, "Matches your favorite category: %s")
	match(p.subcategory, l.Subcategory, WeightSubcategory, "Similar to places you've stayed: %s")
	match(p.placeType, l.PlaceType, WeightPlaceType, "Your preferred place type: %s")
	match(p.serviceType, l.ServiceType, WeightServiceType, "Service you've booked before: %s")
	match(p.activityType, l.ActivityType, WeightActivityType, "Activity you've enjoyed: %s")

	if p.location != "" && strings.Contains(strings.ToLower(l.Location), p.location) {
		score += WeightLocation
		reasons = append(reasons, fmt.Sprintf("In a location you like: %s", l.Location))
	}

	if ps := p.priceScore(l.Price); ps > 0 {
		score += ps
		reasons = append(reasons, fmt.Sprintf("Within your usual price range: %.2f", l.Price))
	}

	if n := overlap(p.amenities, l.Amenities); n > 0 {
		score += WeightAmenities * float64(n) / float64(len(p.amenities))
		reasons = append(reasons, fmt.Sprintf("Has %d amenities you like", n))
	}
	if n := overlap(p.services, l.Services); n > 0 {
		score += WeightServices * float64(n) / float64(len(p.services))
		reasons = append(reasons, fmt.Sprintf("Offers %d services you've used", n))
	}

	return score, reasons
}

// priceScore scales linearly with closeness to the average booked price.
// A zero-width range only rewards the exact average.
func (p *preferences) priceScore(price float64) float64 {
	if !p.hasPrice || price <= 0 {
		return 0
	}
	spread := p.maxPrice - p.minPrice
	if spread == 0 {
		if price == p.avgPrice {
			return WeightPrice
		}
		return 0
	}
	similarity := 1 - math.Abs(price-p.avgPrice)/spread
	if similarity <= 0 {
		return 0
	}
	return WeightPrice * similarity
}

// overlap counts the distinct values of have that appear in preferred.
func overlap(preferred map[string]struct{}, have []string) int {
	if len(preferred) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(have))
	n := 0
	for _, v := range have {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := preferred[v]; ok {
			n++
		}
	}
	return n
}

// LocationTokens splits a free-text location on commas into trimmed,
// lower-cased, non-empty tokens.
func LocationTokens(location string) []string {
	parts := strings.Split(location, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if tok := strings.ToLower(strings.TrimSpace(part)); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
