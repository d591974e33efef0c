package domain

import "slices"

// Account roles
const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// IsValidRole reports whether role is a known account role
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleVendor, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Service categories a booking can be made for and a vendor can serve
const (
	CategoryCleaning        = "cleaning"
	CategoryPlumbing        = "plumbing"
	CategoryElectrical      = "electrical"
	CategoryCarpentry       = "carpentry"
	CategoryPainting        = "painting"
	CategoryApplianceRepair = "appliance_repair"
	CategoryPestControl     = "pest_control"
	CategoryScrapPickup     = "scrap_pickup"
)

// ServiceCategories lists every service category
var ServiceCategories = []string{
	CategoryCleaning,
	CategoryPlumbing,
	CategoryElectrical,
	CategoryCarpentry,
	CategoryPainting,
	CategoryApplianceRepair,
	CategoryPestControl,
	CategoryScrapPickup,
}

// IsServiceCategory reports whether c is a known service category
func IsServiceCategory(c string) bool {
	return slices.Contains(ServiceCategories, c)
}
