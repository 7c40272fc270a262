package domain

// MiningPackage is a purchasable hashrate upgrade, priced in TON.
type MiningPackage struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	HashRate float64 `json:"hashRate"`
	PriceTON float64 `json:"priceTON"`
	Validity string  `json:"validity"`
}

// MiningPackages is the fixed catalog shown on the upgrade page.
var MiningPackages = []MiningPackage{
	{ID: 1, Name: "Starter Rig", HashRate: 33.33, PriceTON: 1.3, Validity: "30 days"},
	{ID: 2, Name: "Pro Rig", HashRate: 50, PriceTON: 2.5, Validity: "30 days"},
	{ID: 3, Name: "Diamond Rig", HashRate: 100, PriceTON: 4.2, Validity: "30 days"},
}

// PackageByID looks a package up in the catalog.
func PackageByID(id int) (MiningPackage, bool) {
	for _, p := range MiningPackages {
		if p.ID == id {
			return p, true
		}
	}
	return MiningPackage{}, false
}
