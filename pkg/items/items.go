// Package items holds the static item taxonomy: display names, slang tags
// and categories of stockpile item codes.
package items

import (
	"sort"
	"strings"
)

// Category groups item codes for inventory filtering.
type Category string

const (
	All       Category = "all"
	Vehicles  Category = "vehicles"
	Weapons   Category = "weapons"
	Ammo      Category = "ammo"
	Resources Category = "resources"
	Supplies  Category = "supplies"
	Other     Category = "other"
)

// ParseCategory returns the category named by s. Empty and unknown names are
// reported with ok == false.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case All, Vehicles, Weapons, Ammo, Resources, Supplies, Other:
		return c, true
	}
	return "", false
}

type item struct {
	name     string
	category Category
}

var catalog = map[string]item{
	// resources
	"Cloth":              {"Basic Materials", Resources},
	"Wood":               {"Refined Materials", Resources},
	"Explosive":          {"Explosive Powder", Resources},
	"HeavyExplosive":     {"Heavy Explosive Powder", Resources},
	"Components":         {"Components", Resources},
	"Concrete":           {"Concrete Materials", Resources},
	"Coal":               {"Coal", Resources},
	"Sulfur":             {"Sulfur", Resources},
	"Salvage":            {"Salvage", Resources},
	"Diesel":             {"Diesel", Resources},
	"Petrol":             {"Petrol", Resources},
	"Oil":                {"Oil", Resources},
	"Water":              {"Water", Resources},
	"FacilityMaterials1": {"Construction Materials", Resources},
	"FacilityMaterials2": {"Processed Construction Materials", Resources},
	"SteelMaterials":     {"Steel Construction Materials", Resources},

	// supplies
	"SoldierSupplies":     {"Soldier Supplies", Supplies},
	"MaintenanceSupplies": {"Maintenance Supplies", Supplies},
	"GarrisonSupplies":    {"Garrison Supplies", Supplies},
	"Bandages":            {"Bandages", Supplies},
	"FirstAidKit":         {"First Aid Kit", Supplies},
	"TraumaKit":           {"Trauma Kit", Supplies},
	"BloodPlasma":         {"Blood Plasma", Supplies},
	"GasMask":             {"Gas Mask", Supplies},
	"GasMaskFilter":       {"Gas Mask Filter", Supplies},
	"Binoculars":          {"Binoculars", Supplies},
	"Shovel":              {"Shovel", Supplies},
	"SledgeHammer":        {"Sledge Hammer", Supplies},
	"WorkWrench":          {"Wrench", Supplies},
	"Radio":               {"Radio", Supplies},

	// weapons
	"RifleC":          {"Argenti r.II Rifle", Weapons},
	"RifleW":          {"No.2 Loughcaster", Weapons},
	"RifleLongW":      {"Clancy Cinder M3", Weapons},
	"SMGC":            {"\"Lionclaw\" mc.VIII", Weapons},
	"SMGW":            {"Fiddler Submachine Gun Model 868", Weapons},
	"AssaultRifleC":   {"Aalto Storm Rifle 24", Weapons},
	"AssaultRifleW":   {"Booker Storm Rifle Model 838", Weapons},
	"MGC":             {"KRN886-127 Gast Machine Gun", Weapons},
	"MGW":             {"Malone MK.2", Weapons},
	"HeavyMachineGun": {"Heavy Machine Gun", Weapons},
	"ATRifleC":        {"\"Quickhatch\" Anti-Tank Rifle", Weapons},
	"ATRifleW":        {"20 Neville Anti-Tank Rifle", Weapons},
	"RPGTW":           {"Cutler Launcher 4", Weapons},
	"ATRPGC":          {"Bane 45", Weapons},
	"ATRPGW":          {"Bonesaw MK.3", Weapons},
	"GrenadeC":        {"Bomastone Grenade", Weapons},
	"GrenadeW":        {"A3 Harpa Fragmentation Grenade", Weapons},
	"HEGrenade":       {"Mammon 91-b", Weapons},
	"SmokeGrenade":    {"PT-815 Smoke Grenade", Weapons},
	"StickyBomb":      {"Anti-Tank Sticky Bomb", Weapons},
	"MortarTripod":    {"Cremari Mortar", Weapons},

	// ammo
	"RifleAmmo":          {"7.62mm", Ammo},
	"PistolAmmo":         {"8mm", Ammo},
	"SMGAmmo":            {"9mm SMG", Ammo},
	"AssaultRifleAmmo":   {"7.92mm", Ammo},
	"MGAmmo":             {"12.7mm", Ammo},
	"ATRifleAmmo":        {"20mm", Ammo},
	"ShotgunAmmo":        {"Buckshot", Ammo},
	"LightTankAmmo":      {"40mm", Ammo},
	"ATAmmo":             {"68mm", Ammo},
	"BattleTankAmmo":     {"75mm", Ammo},
	"HeavyArtilleryAmmo": {"150mm", Ammo},
	"LightArtilleryAmmo": {"120mm", Ammo},
	"MortarAmmo":         {"Mortar Shell", Ammo},
	"MortarAmmoFL":       {"Mortar Flare Shell", Ammo},
	"MortarAmmoSH":       {"Mortar Shrapnel Shell", Ammo},
	"RpgAmmo":            {"RPG", Ammo},
	"ATRPGAmmo":          {"AP/RPG", Ammo},

	// vehicles
	"TruckC":         {"R-1 Hauler", Vehicles},
	"TruckW":         {"Dunne Transport", Vehicles},
	"FlatbedTruck":   {"BMS - Packmule Flatbed", Vehicles},
	"ScoutVehicleC":  {"UV-05a \"Argonaut\"", Vehicles},
	"ScoutVehicleW":  {"Drummond 100a", Vehicles},
	"ArmoredCarC":    {"O'Brien V.110", Vehicles},
	"ArmoredCarW":    {"T3 \"Xiphos\"", Vehicles},
	"HalfTrackC":     {"HH-a \"Javelin\"", Vehicles},
	"HalfTrackW":     {"Niska Mk. I Gun Motor Carriage", Vehicles},
	"LightTankC":     {"H-5 \"Hatchet\"", Vehicles},
	"LightTankW":     {"Devitt Mk. III", Vehicles},
	"MediumTankC":    {"85K-b \"Falchion\"", Vehicles},
	"MediumTankW":    {"Silverhand - Mk. IV", Vehicles},
	"BattleTankC":    {"Flood Mk. I", Vehicles},
	"BattleTankW":    {"Lance-36", Vehicles},
	"TankDestroyerC": {"Spatha", Vehicles},
	"SuperTankC":     {"O-75b \"Ares\"", Vehicles},
	"SuperTankW":     {"Cullen Predator Mk. III", Vehicles},
	"Ambulance":      {"Ambulance", Vehicles},
	"FuelTanker":     {"Fuel Tanker", Vehicles},
	"Crane":          {"BMS - Class 2 Mobile Auto-Crane", Vehicles},
	"Harvester":      {"Harvester", Vehicles},
	"GunboatC":       {"Type C - \"Charon\"", Vehicles},
	"GunboatW":       {"74b-1 Ronan Gunship", Vehicles},
	"Barge":          {"BMS - Aquatipper", Vehicles},
	"LightTank":      {"Light Tank", Vehicles},
	"MotorcycleC":    {"03MM \"Caster\"", Vehicles},
	"MotorcycleW":    {"Kivela Power Wheel 80-1", Vehicles},
}

// tags maps lowercase slang to canonical item codes.
var tags = map[string][]string{
	"bmat":    {"Cloth"},
	"bmats":   {"Cloth"},
	"rmat":    {"Wood"},
	"rmats":   {"Wood"},
	"emat":    {"Explosive"},
	"emats":   {"Explosive"},
	"hemat":   {"HeavyExplosive"},
	"hemats":  {"HeavyExplosive"},
	"cmat":    {"FacilityMaterials1"},
	"cmats":   {"FacilityMaterials1"},
	"pcmat":   {"FacilityMaterials2"},
	"pcmats":  {"FacilityMaterials2"},
	"comp":    {"Components"},
	"comps":   {"Components"},
	"ss":      {"SoldierSupplies"},
	"shirts":  {"SoldierSupplies"},
	"ms":      {"MaintenanceSupplies"},
	"msupp":   {"MaintenanceSupplies"},
	"msupps":  {"MaintenanceSupplies"},
	"gsupp":   {"GarrisonSupplies"},
	"gsupps":  {"GarrisonSupplies"},
	"12.7":    {"MGAmmo"},
	"7.62":    {"RifleAmmo"},
	"7.92":    {"AssaultRifleAmmo"},
	"9mm":     {"SMGAmmo"},
	"20mm":    {"ATRifleAmmo"},
	"40mm":    {"LightTankAmmo"},
	"68mm":    {"ATAmmo"},
	"75mm":    {"BattleTankAmmo"},
	"120mm":   {"LightArtilleryAmmo"},
	"150mm":   {"HeavyArtilleryAmmo"},
	"mammon":  {"HEGrenade"},
	"frag":    {"GrenadeW"},
	"smoke":   {"SmokeGrenade"},
	"sticky":  {"StickyBomb"},
	"at":      {"ATRifleC", "ATRifleW", "ATRPGC", "ATRPGW", "StickyBomb"},
	"atr":     {"ATRifleC", "ATRifleW"},
	"rpg":     {"RPGTW", "RpgAmmo"},
	"hmg":     {"HeavyMachineGun", "MGC", "MGW"},
	"smg":     {"SMGC", "SMGW", "SMGAmmo"},
	"ar":      {"AssaultRifleC", "AssaultRifleW", "AssaultRifleAmmo"},
	"rifle":   {"RifleC", "RifleW", "RifleLongW"},
	"lt":      {"LightTankC", "LightTankW", "LightTank"},
	"mpt":     {"MediumTankC", "MediumTankW"},
	"bt":      {"BattleTankC", "BattleTankW"},
	"sh":      {"SuperTankC", "SuperTankW"},
	"ac":      {"ArmoredCarC", "ArmoredCarW"},
	"ht":      {"HalfTrackC", "HalfTrackW"},
	"truck":   {"TruckC", "TruckW"},
	"trucks":  {"TruckC", "TruckW"},
	"mortar":  {"MortarTripod", "MortarAmmo", "MortarAmmoFL", "MortarAmmoSH"},
	"bandage": {"Bandages"},
	"fak":     {"FirstAidKit"},
	"plasma":  {"BloodPlasma"},
}

// DisplayName returns the human readable name of an item code, or the code
// itself when it is unknown.
func DisplayName(code string) string {
	if it, ok := catalog[code]; ok {
		return it.name
	}
	return code
}

// IsVehicle reports whether code names a vehicle.
func IsVehicle(code string) bool {
	return CategoryOf(code) == Vehicles
}

// CategoryOf classifies an item code. Unknown codes are Other.
func CategoryOf(code string) Category {
	if it, ok := catalog[code]; ok {
		return it.category
	}
	return Other
}

// InCategory reports whether code belongs to c. Every code is in All.
func InCategory(code string, c Category) bool {
	return c == All || CategoryOf(code) == c
}

// TagToCodes resolves a slang tag to item codes. Matching ignores case and
// surrounding whitespace; unknown tags resolve to nothing.
func TagToCodes(tag string) []string {
	codes := tags[strings.ToLower(strings.TrimSpace(tag))]
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// CodesIn lists the known item codes of a category, sorted.
func CodesIn(c Category) []string {
	var out []string
	for code := range catalog {
		if InCategory(code, c) {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}
