package bill

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"splitbill/internal/settle"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		service = NewService(db, scanner, storage)
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should serve the HTML interface", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("영수증 정산"))
		})
	})

	Describe("handleListBills", func() {
		When("bills exist", func() {
			BeforeEach(func() {
				db.bills["id1"] = &Bill{ID: "id1", Title: "회식 1"}
				db.bills["id2"] = &Bill{ID: "id2", Title: "회식 2"}
			})

			It("should return all bills as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var bills []*Bill
				Expect(json.NewDecoder(resp.Body).Decode(&bills)).NotTo(HaveOccurred())
				Expect(bills).To(HaveLen(2))
			})
		})

		When("no bills exist", func() {
			It("should return an empty array, not null", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(ContainSubstring("[]"))
			})
		})
	})

	Describe("handleCreateBill", func() {
		It("should create a bill with its first round", func() {
			payload := bytes.NewBufferString(`{"title":"회식","participants":["철수","영희"]}`)
			resp, err := http.Post(ghttpServer.URL()+"/api/bills", "application/json", payload)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var bill Bill
			Expect(json.NewDecoder(resp.Body).Decode(&bill)).NotTo(HaveOccurred())
			Expect(bill.Title).To(Equal("회식"))
			Expect(bill.Rounds).To(HaveLen(1))
			Expect(bill.Rounds[0].Name).To(Equal("1차"))
		})

		When("the body is not JSON", func() {
			It("should return bad request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/bills", "application/json", bytes.NewBufferString("nope"))
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleGetBill", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{ID: "b1", Title: "회식"}
		})

		It("should return the bill", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/bills/b1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var bill Bill
			Expect(json.NewDecoder(resp.Body).Decode(&bill)).NotTo(HaveOccurred())
			Expect(bill.ID).To(Equal("b1"))
		})

		When("the bill does not exist", func() {
			It("should return not found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/nope")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleUpdateBill", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{
				ID:    "b1",
				Title: "회식",
				Rounds: []Round{{
					Name:  "1차",
					Items: []settle.Item{{Name: "합계", Amount: 48000, InitialAmount: 48000, IsTotal: true}},
				}},
			}
		})

		It("should replace the participants and rounds", func() {
			payload := bytes.NewBufferString(`{
				"participants": ["철수", "영희"],
				"rounds": [{
					"name": "1차",
					"payer": "철수",
					"items": [
						{"name": "합계", "amount": 48000, "initial_amount": 48000, "is_total": true},
						{"name": "안주", "amount": 18000}
					]
				}]
			}`)
			req, err := http.NewRequest(http.MethodPut, ghttpServer.URL()+"/api/bills/b1", payload)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var bill Bill
			Expect(json.NewDecoder(resp.Body).Decode(&bill)).NotTo(HaveOccurred())
			Expect(bill.Participants).To(Equal([]string{"철수", "영희"}))
			Expect(bill.Rounds[0].Items[0].Amount).To(Equal(30000.0))
		})
	})

	Describe("handleDeleteBill", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{ID: "b1"}
		})

		It("should delete the bill", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/bills/b1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.bills).NotTo(HaveKey("b1"))
		})
	})

	Describe("handleAddRound", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{ID: "b1", Rounds: []Round{{Name: "1차"}}}
		})

		It("should append a round with a default name", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/bills/b1/rounds", "application/json", bytes.NewBufferString("{}"))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var bill Bill
			Expect(json.NewDecoder(resp.Body).Decode(&bill)).NotTo(HaveOccurred())
			Expect(bill.Rounds).To(HaveLen(2))
			Expect(bill.Rounds[1].Name).To(Equal("2차"))
		})
	})

	Describe("handleScanRound", func() {
		var body *bytes.Buffer
		var contentType string

		BeforeEach(func() {
			db.bills["b1"] = &Bill{ID: "b1", Rounds: []Round{{Name: "1차"}}}

			body = &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			part, err := writer.CreateFormFile("file", "receipt.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write([]byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(writer.Close()).NotTo(HaveOccurred())
			contentType = writer.FormDataContentType()
		})

		It("should scan the receipt and return the extraction", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/bills/b1/rounds/0/scan", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result struct {
				Bill     Bill     `json:"bill"`
				Lines    []string `json:"lines"`
				Amount   int      `json:"amount"`
				Evidence string   `json:"evidence"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&result)).NotTo(HaveOccurred())
			Expect(result.Amount).To(Equal(12000))
			Expect(result.Evidence).To(Equal("합계 12,000"))
			Expect(result.Bill.Rounds[0].Items).To(HaveLen(1))
			Expect(result.Bill.Rounds[0].Items[0].IsTotal).To(BeTrue())
		})

		When("no file is attached", func() {
			It("should return bad request", func() {
				empty := &bytes.Buffer{}
				writer := multipart.NewWriter(empty)
				Expect(writer.Close()).NotTo(HaveOccurred())

				resp, err := http.Post(ghttpServer.URL()+"/api/bills/b1/rounds/0/scan", writer.FormDataContentType(), empty)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("handleRoundReceipt", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{
				ID: "b1",
				Rounds: []Round{{
					Name:        "1차",
					ReceiptFile: "b1_r0_receipt.jpg",
					ContentType: "image/jpeg",
				}},
			}
			storage.files["b1_r0_receipt.jpg"] = []byte("image bytes")
		})

		It("should return the stored image", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/bills/b1/rounds/0/receipt")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("image bytes"))
		})

		When("the round has no receipt", func() {
			BeforeEach(func() {
				db.bills["b1"].Rounds[0].ReceiptFile = ""
			})

			It("should return not found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/b1/rounds/0/receipt")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("handleSettlement", func() {
		BeforeEach(func() {
			db.bills["b1"] = &Bill{
				ID:           "b1",
				Participants: []string{"철수", "영희"},
				Rounds: []Round{{
					Name:  "1차",
					Payer: "철수",
					Items: []settle.Item{{Name: "합계", Amount: 20000}},
				}},
			}
		})

		It("should return the settlement", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/bills/b1/settlement")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var settlement Settlement
			Expect(json.NewDecoder(resp.Body).Decode(&settlement)).NotTo(HaveOccurred())
			Expect(settlement.Rounds).To(HaveLen(1))
			Expect(settlement.Rounds[0].Result.Total).To(Equal(20000))
			Expect(settlement.Summary).To(HaveLen(2))
		})

		When("the bill does not exist", func() {
			It("should return not found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/nope/settlement")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			setupServer()
		})

		When("no credentials are sent", func() {
			It("should return unauthorized with a challenge", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})
		})

		When("valid credentials are sent", func() {
			It("should serve the request", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/bills", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("admin", "secret")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})

		When("wrong credentials are sent", func() {
			It("should return unauthorized", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/bills", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("admin", "wrong")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			})
		})
	})
})
