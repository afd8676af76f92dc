package api

import "fmt"

// Validate checks that CreateStockRequest has all required fields.
func (r *CreateStockRequest) Validate() error {
	if r.ProductName == "" {
		return fmt.Errorf("product_name is required")
	}
	if !r.QuantityKg.IsPositive() {
		return fmt.Errorf("quantity_kg must be positive")
	}
	return nil
}

// Validate checks that MintRequest has all required fields.
func (r *MintRequest) Validate() error {
	if !r.QuantityKg.IsPositive() {
		return fmt.Errorf("quantity_kg must be positive")
	}
	return nil
}

// Validate checks that BurnRequest has all required fields.
func (r *BurnRequest) Validate() error {
	if !r.QuantityKg.IsPositive() {
		return fmt.Errorf("quantity_kg must be positive")
	}
	return nil
}

// Validate checks that SellRequest has all required fields.
func (r *SellRequest) Validate() error {
	if r.Seller == "" {
		return fmt.Errorf("seller is required")
	}
	if r.Buyer == "" {
		return fmt.Errorf("buyer is required")
	}
	if !r.QuantityKg.IsPositive() {
		return fmt.Errorf("quantity_kg must be positive")
	}
	return nil
}

// Validate checks that AssociateRequest has all required fields.
func (r *AssociateRequest) Validate() error {
	if r.Account == "" {
		return fmt.Errorf("account is required")
	}
	if r.SigningKey == "" {
		return fmt.Errorf("signing_key is required")
	}
	return nil
}

// Validate checks that UpdateMetadataRequest has all required fields.
func (r *UpdateMetadataRequest) Validate() error {
	if len(r.Attributes) == 0 {
		return fmt.Errorf("attributes must not be empty")
	}
	return nil
}
