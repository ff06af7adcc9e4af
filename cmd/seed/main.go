package main

import (
	"context"
	"fmt"
	"log"

	"campusnest/internal/config"
	"campusnest/internal/database"
	"campusnest/internal/domain"
	jwtsvc "campusnest/internal/pkg/jwt"
	"campusnest/internal/repository"
)

const (
	adminID     int64 = 1
	landlordOne int64 = 10
	landlordTwo int64 = 11
	studentOne  int64 = 100
	studentTwo  int64 = 101
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if config.IsProdLike(cfg.AppEnv) {
		log.Fatal("refusing to seed a prod/release database")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	// Cleanup old data (children first)
	log.Println("Cleaning old data...")
	for _, table := range []string{
		"notifications",
		"settlement_entries",
		"payments",
		"booking_transitions",
		"bookings",
		"properties",
		"platform_settings",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			log.Fatalf("cleanup %s failed: %v", table, err)
		}
	}

	ctx := context.Background()

	// ================== PROPERTIES ==================
	log.Println("Creating properties...")
	properties := repository.NewPropertyRepository(db)
	seed := []domain.Property{
		{LandlordID: landlordOne, Title: "Studio near North Campus", City: "Almaty", Status: domain.PropertyActive, MonthlyRent: 15000, SecurityDeposit: 15000},
		{LandlordID: landlordOne, Title: "Shared flat, 2 bedrooms", City: "Almaty", Status: domain.PropertyActive, MonthlyRent: 9000, SecurityDeposit: 4500},
		{LandlordID: landlordTwo, Title: "Loft by the library", City: "Astana", Status: domain.PropertyActive, MonthlyRent: 21000, SecurityDeposit: 0},
		{LandlordID: landlordTwo, Title: "Room under renovation", City: "Astana", Status: domain.PropertyInactive, MonthlyRent: 7000, SecurityDeposit: 7000},
	}
	for i := range seed {
		if err := properties.Create(ctx, &seed[i]); err != nil {
			log.Fatalf("create property failed: %v", err)
		}
		log.Printf("Property #%d %q landlord=%d rent=%d status=%s", seed[i].ID, seed[i].Title, seed[i].LandlordID, seed[i].MonthlyRent, seed[i].Status)
	}

	// ================== SETTINGS ==================
	settings := repository.NewSettingsRepository(db)
	bps := fmt.Sprintf("%d", cfg.DefaultCommissionRate.Bps())
	if err := settings.Set(ctx, domain.SettingCommissionRate, bps, adminID); err != nil {
		log.Fatalf("set commission rate failed: %v", err)
	}
	log.Printf("Commission rate set to %s", cfg.DefaultCommissionRate)

	// ================== TOKENS ==================
	// identities live in the auth service; these tokens only let you call the API locally
	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)
	for _, u := range []struct {
		id   int64
		role string
	}{
		{adminID, jwtsvc.RoleAdmin},
		{landlordOne, jwtsvc.RoleLandlord},
		{landlordTwo, jwtsvc.RoleLandlord},
		{studentOne, jwtsvc.RoleStudent},
		{studentTwo, jwtsvc.RoleStudent},
	} {
		token, err := j.GenerateToken(u.id, u.role)
		if err != nil {
			log.Fatalf("generate token failed: %v", err)
		}
		log.Printf("%s #%d: %s", u.role, u.id, token)
	}

	log.Println("Seed completed")
}
