package chat

import "fmt"

// carImages maps manufacturer -> model -> static image path.
// A real deployment would source this from the catalog database.
var carImages = map[string]map[string]string{
	"Toyota": {
		"Corolla":    "/static/images/cars/toyota-corolla.jpg",
		"Camry":      "/static/images/cars/toyota-camry.jpg",
		"RAV4":       "/static/images/cars/toyota-rav4.jpg",
		"Prius":      "/static/images/cars/toyota-prius.jpg",
		"Highlander": "/static/images/cars/toyota-highlander.jpg",
	},
	"Honda": {
		"Civic":   "/static/images/cars/honda-civic.jpg",
		"Accord":  "/static/images/cars/honda-accord.jpg",
		"CR-V":    "/static/images/cars/honda-crv.jpg",
		"Pilot":   "/static/images/cars/honda-pilot.jpg",
		"Odyssey": "/static/images/cars/honda-odyssey.jpg",
	},
}

// CarImage resolves the image path for a manufacturer/model pair.
// Unknown pairs get a deterministic placeholder carrying both arguments.
func CarImage(manufacturer, model string) string {
	if models, ok := carImages[manufacturer]; ok {
		if path, ok := models[model]; ok {
			return path
		}
	}
	return fmt.Sprintf("/placeholder.svg?make=%s&model=%s", manufacturer, model)
}
