package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/service"
	"github.com/noah-isme/campus-admin-api/pkg/config"
)

// issue-token mints a bearer token for a desk operator using the JWT settings of the
// current environment.
func main() {
	var (
		subject string
		name    string
		roles   string
		ttl     time.Duration
	)

	flag.StringVar(&subject, "subject", "", "Operator identifier written to the sub claim")
	flag.StringVar(&name, "name", "", "Display name")
	flag.StringVar(&roles, "roles", string(models.RoleAdmin), "Comma separated roles (ADMIN, REGISTRAR, COURSE_MANAGER, BURSAR, ANALYST)")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime, defaults to JWT_EXPIRATION")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if ttl <= 0 {
		ttl = cfg.JWT.Expiration
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Expiry:   ttl,
	})

	issued, err := tokens.Issue(subject, name, parseRoles(roles))
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(issued); err != nil {
		log.Fatalf("failed to write token: %v", err)
	}
}

func parseRoles(raw string) []models.Role {
	var roles []models.Role
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			roles = append(roles, models.Role(part))
		}
	}
	return roles
}
