// Package seed generates sample incidents around Hyderabad neighbourhoods.
package seed

import (
	"fmt"
	"time"

	"github.com/jaswdr/faker"

	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/pkg/utils"
)

// Area is a neighbourhood incidents are scattered around
type Area struct {
	Name     string
	Lat, Lng float64
}

// Areas are the default neighbourhoods
var Areas = []Area{
	{"Hitech City", 17.3850, 78.4867},
	{"Gachibowli", 17.4065, 78.4772},
	{"Secunderabad", 17.4474, 78.3762},
	{"Madhapur", 17.4239, 78.4738},
	{"Banjara Hills", 17.3616, 78.4747},
	{"Kukatpally", 17.4375, 78.4482},
	{"Jubilee Hills", 17.4126, 78.4970},
	{"Miyapur", 17.4399, 78.4983},
}

type crimeType struct {
	name   string
	weight int // percent
}

var crimeTypes = []crimeType{
	{"theft", 35},
	{"assault", 25},
	{"burglary", 20},
	{"vandalism", 15},
	{"fraud", 5},
}

// MaxSpreadKm bounds how far an incident lands from its area center
const MaxSpreadKm = 1.5

// Generator builds sample incidents
type Generator struct {
	fake  faker.Faker
	areas []Area
}

// NewGenerator creates a generator. A nil areas slice uses Areas.
func NewGenerator(fake faker.Faker, areas []Area) *Generator {
	if len(areas) == 0 {
		areas = Areas
	}
	return &Generator{fake: fake, areas: areas}
}

// Generate returns n incidents observed within the last days before now
func (g *Generator) Generate(n, days int, now time.Time) []domain.IncidentRecord {
	from := now.Add(-time.Duration(days) * 24 * time.Hour)
	out := make([]domain.IncidentRecord, 0, n)
	for i := 0; i < n; i++ {
		area := g.areas[g.fake.IntBetween(0, len(g.areas)-1)]
		lat, lng := g.scatter(area)
		kind := g.pickType()
		out = append(out, domain.IncidentRecord{
			Latitude:    lat,
			Longitude:   lng,
			Severity:    float64(g.fake.IntBetween(domain.MinReportSeverity, domain.MaxReportSeverity)),
			Type:        kind,
			Description: fmt.Sprintf("%s reported in %s. %s", kind, area.Name, g.fake.Lorem().Sentence(6)),
			ObservedAt:  g.fake.Time().TimeBetween(from, now).UTC(),
		})
	}
	return out
}

// scatter jitters the area center by up to 0.01 degrees, staying within MaxSpreadKm
func (g *Generator) scatter(a Area) (float64, float64) {
	for {
		lat := a.Lat + float64(g.fake.IntBetween(-1000, 1000))/1e5
		lng := a.Lng + float64(g.fake.IntBetween(-1000, 1000))/1e5
		if utils.Haversine(a.Lat, a.Lng, lat, lng) <= MaxSpreadKm {
			return utils.RoundTo(lat, 6), utils.RoundTo(lng, 6)
		}
	}
}

func (g *Generator) pickType() string {
	roll := g.fake.IntBetween(1, 100)
	for _, c := range crimeTypes {
		if roll <= c.weight {
			return c.name
		}
		roll -= c.weight
	}
	return crimeTypes[len(crimeTypes)-1].name
}
