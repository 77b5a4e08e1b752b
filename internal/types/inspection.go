package types

import (
	"time"

	"gorm.io/datatypes"
)

// Inspection is one row per (camis, inspection_date). Core columns are owned
// by the ingestion pipeline; enrichment columns and their bookkeeping
// timestamps are owned by the enrichment jobs and never touched by ingestion.
type Inspection struct {
	Camis          string    `gorm:"column:camis;primaryKey;size:16" json:"camis"`
	InspectionDate time.Time `gorm:"column:inspection_date;type:date;primaryKey" json:"inspection_date"`

	DBA                string     `gorm:"column:dba" json:"dba"`
	DBANormalized      string     `gorm:"column:dba_normalized_search;index" json:"dba_normalized_search"`
	Boro               string     `gorm:"column:boro" json:"boro"`
	Building           string     `gorm:"column:building" json:"building"`
	Street             string     `gorm:"column:street" json:"street"`
	Zipcode            string     `gorm:"column:zipcode" json:"zipcode"`
	Phone              string     `gorm:"column:phone" json:"phone"`
	Latitude           *float64   `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude          *float64   `gorm:"column:longitude" json:"longitude,omitempty"`
	Grade              string     `gorm:"column:grade;index" json:"grade"`
	GradeDate          *time.Time `gorm:"column:grade_date;type:date" json:"grade_date,omitempty"`
	InspectionType     string     `gorm:"column:inspection_type" json:"inspection_type"`
	CuisineDescription string     `gorm:"column:cuisine_description" json:"cuisine_description"`
	CriticalFlag       string     `gorm:"column:critical_flag" json:"critical_flag"`
	Action             string     `gorm:"column:action" json:"action"`

	FoursquareFsqID   *string        `gorm:"column:foursquare_fsq_id;index" json:"foursquare_fsq_id,omitempty"`
	GooglePlaceID     *string        `gorm:"column:google_place_id;index" json:"google_place_id,omitempty"`
	GoogleRating      *float64       `gorm:"column:google_rating" json:"google_rating,omitempty"`
	GoogleReviewCount *int           `gorm:"column:google_review_count" json:"google_review_count,omitempty"`
	Website           *string        `gorm:"column:website" json:"website,omitempty"`
	Hours             datatypes.JSON `gorm:"column:hours;type:jsonb" json:"hours,omitempty"`
	GoogleMapsURL     *string        `gorm:"column:google_maps_url" json:"google_maps_url,omitempty"`
	PriceLevel        *string        `gorm:"column:price_level" json:"price_level,omitempty"`
	DineIn            *bool          `gorm:"column:dine_in" json:"dine_in,omitempty"`
	Takeout           *bool          `gorm:"column:takeout" json:"takeout,omitempty"`
	Delivery          *bool          `gorm:"column:delivery" json:"delivery,omitempty"`

	ExternalIDLastChecked   *time.Time `gorm:"column:external_id_last_checked;index" json:"external_id_last_checked,omitempty"`
	EnrichmentLastAttempted *time.Time `gorm:"column:enrichment_last_attempted;index" json:"enrichment_last_attempted,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Inspection) TableName() string { return "restaurants" }

// CoreColumns are the columns overwritten by the ingestion upsert on conflict.
// Enrichment columns and bookkeeping timestamps are deliberately absent.
func (Inspection) CoreColumns() []string {
	return []string{
		"dba", "dba_normalized_search", "boro", "building", "street",
		"zipcode", "phone", "latitude", "longitude", "grade", "grade_date",
		"inspection_type", "cuisine_description", "critical_flag", "action",
		"updated_at",
	}
}
