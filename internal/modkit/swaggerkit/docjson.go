//go:build swag

package swaggerkit

// generated by swag init --instanceName rollcall; registers itself on import
import _ "rollcall/internal/services/api/docs"
