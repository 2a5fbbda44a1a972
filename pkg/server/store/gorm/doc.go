// Package gorm provides GORM-based implementations of the store interfaces
// defined in the parent store package.
//
// Lookups made on behalf of the identity middleware run on the connection
// the middleware checked out of the pool; everything else uses the shared
// *gorm.DB.
package gorm
