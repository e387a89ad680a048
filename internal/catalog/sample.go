package catalog

import "github.com/shopspring/decimal"

// SampleProducts is the built-in demo catalog. It backs the seeder and the
// package fallback dataset, so ids are stable.
func SampleProducts() []Product {
	p := func(id int64, c Category, name, price string) Product {
		return Product{ID: id, Category: c, Name: name, Price: decimal.RequireFromString(price)}
	}
	return []Product{
		p(1, CategoryCPU, "AMD Ryzen 5 7600", "199.00"),
		p(2, CategoryCPU, "Intel Core i7-14700K", "389.00"),
		p(3, CategoryMotherboard, "MSI MAG B650 Tomahawk", "199.99"),
		p(4, CategoryMotherboard, "ASUS Prime Z790-P", "219.00"),
		p(5, CategoryRAM, "Kingston Fury Beast DDR5 16GB", "54.99"),
		p(6, CategoryRAM, "Corsair Vengeance DDR5 32GB", "104.99"),
		p(7, CategoryGPU, "NVIDIA GeForce RTX 4060", "299.00"),
		p(8, CategoryGPU, "AMD Radeon RX 7800 XT", "499.00"),
		p(9, CategoryStorage, "Samsung 990 EVO 1TB", "89.99"),
		p(10, CategoryStorage, "Seagate Barracuda 2TB", "64.99"),
		p(11, CategoryPSU, "Corsair RM750e", "99.99"),
		p(12, CategoryCase, "NZXT H5 Flow", "94.99"),
		p(13, CategoryCooling, "Thermalright Peerless Assassin 120", "35.90"),
		p(14, CategoryCooling, "Arctic P12 PWM 5-pack", "29.99"),
		p(15, CategoryMonitor, "LG UltraGear 27GP850-B", "349.99"),
	}
}
