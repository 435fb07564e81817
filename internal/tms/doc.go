// Package tms holds the core transportation domain: loads, legs, stops,
// carriers, drivers, customers, and addresses, together with the
// validation rules that keep a load's route physically coherent. All
// entities are scoped to an organization; stores must never return rows
// belonging to another tenant.
package tms
