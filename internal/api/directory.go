package api

import (
	"net/http"
	"time"

	"machtms/internal/auth"
	"machtms/internal/tms"
)

func (s *Server) registerDirectoryRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/v1/carriers", s.handle("carriers.create", s.createCarrier))
	mux.Handle("GET /api/v1/carriers", s.handle("carriers.list", s.listCarriers))
	mux.Handle("GET /api/v1/carriers/{id}", s.handle("carriers.get", s.getCarrier))
	mux.Handle("PUT /api/v1/carriers/{id}", s.handle("carriers.update", s.updateCarrier))
	mux.Handle("DELETE /api/v1/carriers/{id}", s.handle("carriers.delete", s.deleteCarrier))
	mux.Handle("GET /api/v1/carriers/{id}/drivers", s.handle("carriers.drivers", s.listCarrierDrivers))

	mux.Handle("POST /api/v1/drivers", s.handle("drivers.create", s.createDriver))
	mux.Handle("GET /api/v1/drivers", s.handle("drivers.list", s.listDrivers))
	mux.Handle("GET /api/v1/drivers/{id}", s.handle("drivers.get", s.getDriver))
	mux.Handle("PUT /api/v1/drivers/{id}", s.handle("drivers.update", s.updateDriver))
	mux.Handle("DELETE /api/v1/drivers/{id}", s.handle("drivers.delete", s.deleteDriver))
	mux.Handle("GET /api/v1/drivers/{id}/recent-loads", s.handle("drivers.recent_loads", s.recentLoadsForDriver))

	mux.Handle("POST /api/v1/customers", s.handle("customers.create", s.createCustomer))
	mux.Handle("GET /api/v1/customers", s.handle("customers.list", s.listCustomers))
	mux.Handle("GET /api/v1/customers/{id}", s.handle("customers.get", s.getCustomer))
	mux.Handle("PUT /api/v1/customers/{id}", s.handle("customers.update", s.updateCustomer))
	mux.Handle("DELETE /api/v1/customers/{id}", s.handle("customers.delete", s.deleteCustomer))
	mux.Handle("POST /api/v1/customers/{id}/representatives", s.handle("customers.add_rep", s.addRepresentative))
	mux.Handle("GET /api/v1/customers/{id}/representatives", s.handle("customers.reps", s.listRepresentatives))
	mux.Handle("DELETE /api/v1/representatives/{id}", s.handle("customers.delete_rep", s.deleteRepresentative))
	mux.Handle("POST /api/v1/customers/{id}/ap-contacts", s.handle("customers.add_ap", s.addAPContact))
	mux.Handle("GET /api/v1/customers/{id}/ap-contacts", s.handle("customers.ap_contacts", s.listAPContacts))
	mux.Handle("DELETE /api/v1/ap-contacts/{id}", s.handle("customers.delete_ap", s.deleteAPContact))
	mux.Handle("GET /api/v1/customers/{id}/recent-addresses", s.handle("customers.recent_addresses", s.recentAddresses))

	mux.Handle("POST /api/v1/addresses", s.handle("addresses.create", s.createAddress))
	mux.Handle("GET /api/v1/addresses", s.handle("addresses.list", s.listAddresses))
	mux.Handle("POST /api/v1/addresses/ensure", s.handle("addresses.ensure", s.ensureAddress))
	mux.Handle("GET /api/v1/addresses/{id}", s.handle("addresses.get", s.getAddress))
	mux.Handle("PUT /api/v1/addresses/{id}", s.handle("addresses.update", s.updateAddress))
	mux.Handle("DELETE /api/v1/addresses/{id}", s.handle("addresses.delete", s.deleteAddress))
	mux.Handle("GET /api/v1/addresses/{id}/similar-stops", s.handle("addresses.similar_stops", s.similarStops))
}

func (s *Server) createCarrier(w http.ResponseWriter, r *http.Request) {
	var carrier tms.Carrier
	if err := decodeJSON(r, &carrier); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.deps.TMS.CreateCarrier(r.Context(), auth.OrgFromContext(r.Context()), carrier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listCarriers(w http.ResponseWriter, r *http.Request) {
	carriers, err := s.deps.TMS.ListCarriers(r.Context(), auth.OrgFromContext(r.Context()),
		r.URL.Query().Get("query"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": carriers})
}

func (s *Server) getCarrier(w http.ResponseWriter, r *http.Request) {
	carrier, err := s.deps.TMS.GetCarrier(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, carrier)
}

func (s *Server) updateCarrier(w http.ResponseWriter, r *http.Request) {
	var carrier tms.Carrier
	if err := decodeJSON(r, &carrier); err != nil {
		writeError(w, err)
		return
	}
	carrier.ID = r.PathValue("id")
	updated, err := s.deps.TMS.UpdateCarrier(r.Context(), auth.OrgFromContext(r.Context()), carrier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCarrier(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.TMS.DeleteCarrier(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCarrierDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.deps.TMS.ListDrivers(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": drivers})
}

func (s *Server) createDriver(w http.ResponseWriter, r *http.Request) {
	var driver tms.Driver
	if err := decodeJSON(r, &driver); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.deps.TMS.CreateDriver(r.Context(), auth.OrgFromContext(r.Context()), driver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.deps.TMS.ListDrivers(r.Context(), auth.OrgFromContext(r.Context()),
		r.URL.Query().Get("carrier"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": drivers})
}

func (s *Server) getDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := s.deps.TMS.GetDriver(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, driver)
}

func (s *Server) updateDriver(w http.ResponseWriter, r *http.Request) {
	var driver tms.Driver
	if err := decodeJSON(r, &driver); err != nil {
		writeError(w, err)
		return
	}
	driver.ID = r.PathValue("id")
	updated, err := s.deps.TMS.UpdateDriver(r.Context(), auth.OrgFromContext(r.Context()), driver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.TMS.DeleteDriver(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recentLoadsForDriver(w http.ResponseWriter, r *http.Request) {
	loads, err := s.deps.TMS.RecentLoadsForDriver(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": loads})
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customer tms.Customer
	if err := decodeJSON(r, &customer); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.deps.TMS.CreateCustomer(r.Context(), auth.OrgFromContext(r.Context()), customer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.deps.TMS.ListCustomers(r.Context(), auth.OrgFromContext(r.Context()),
		r.URL.Query().Get("query"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": customers})
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.deps.TMS.GetCustomer(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer tms.Customer
	if err := decodeJSON(r, &customer); err != nil {
		writeError(w, err)
		return
	}
	customer.ID = r.PathValue("id")
	updated, err := s.deps.TMS.UpdateCustomer(r.Context(), auth.OrgFromContext(r.Context()), customer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.TMS.DeleteCustomer(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRepresentative(w http.ResponseWriter, r *http.Request) {
	var rep tms.CustomerRepresentative
	if err := decodeJSON(r, &rep); err != nil {
		writeError(w, err)
		return
	}
	rep.CustomerID = r.PathValue("id")
	created, err := s.deps.TMS.AddRepresentative(r.Context(), auth.OrgFromContext(r.Context()), rep)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listRepresentatives(w http.ResponseWriter, r *http.Request) {
	reps, err := s.deps.TMS.ListRepresentatives(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": reps})
}

func (s *Server) deleteRepresentative(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.TMS.DeleteRepresentative(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addAPContact(w http.ResponseWriter, r *http.Request) {
	var ap tms.CustomerAP
	if err := decodeJSON(r, &ap); err != nil {
		writeError(w, err)
		return
	}
	ap.CustomerID = r.PathValue("id")
	created, err := s.deps.TMS.AddAPContact(r.Context(), auth.OrgFromContext(r.Context()), ap)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listAPContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.deps.TMS.ListAPContacts(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": contacts})
}

func (s *Server) deleteAPContact(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.TMS.DeleteAPContact(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recentAddresses(w http.ResponseWriter, r *http.Request) {
	window := time.Duration(queryInt(r, "days", 0)) * 24 * time.Hour
	addresses, err := s.deps.TMS.RecentAddresses(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), window, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": addresses})
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var address tms.Address
	if err := decodeJSON(r, &address); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.deps.TMS.CreateAddress(r.Context(), auth.OrgFromContext(r.Context()), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.deps.TMS.ListAddresses(r.Context(), auth.OrgFromContext(r.Context()),
		r.URL.Query().Get("query"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": addresses})
}

func (s *Server) ensureAddress(w http.ResponseWriter, r *http.Request) {
	var address tms.Address
	if err := decodeJSON(r, &address); err != nil {
		writeError(w, err)
		return
	}
	ensured, err := s.deps.TMS.EnsureAddress(r.Context(), auth.OrgFromContext(r.Context()), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ensured)
}

func (s *Server) getAddress(w http.ResponseWriter, r *http.Request) {
	address, err := s.deps.TMS.GetAddress(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, address)
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var address tms.Address
	if err := decodeJSON(r, &address); err != nil {
		writeError(w, err)
		return
	}
	address.ID = r.PathValue("id")
	updated, err := s.deps.TMS.UpdateAddress(r.Context(), auth.OrgFromContext(r.Context()), address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.TMS.DeleteAddress(r.Context(), auth.OrgFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) similarStops(w http.ResponseWriter, r *http.Request) {
	stops, err := s.deps.TMS.SimilarStops(r.Context(), auth.OrgFromContext(r.Context()),
		r.PathValue("id"), queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": stops})
}
