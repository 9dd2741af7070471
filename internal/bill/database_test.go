package bill

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"splitbill/internal/settle"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveBill", func() {
		var (
			bill *Bill
			err  error
		)

		BeforeEach(func() {
			bill = &Bill{
				ID:           "test-id",
				Title:        "회식",
				Participants: []string{"철수", "영희"},
				Rounds: []Round{{
					Name:  "1차",
					Payer: "철수",
					Items: []settle.Item{{Name: "합계", Amount: 48000, IsTotal: true}},
				}},
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveBill(bill)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the bill to the database", func() {
				saved, getErr := db.GetBill("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
			})
		})
	})

	Describe("GetBill", func() {
		var (
			billID string
			bill   *Bill
			err    error
		)

		JustBeforeEach(func() {
			bill, err = db.GetBill(billID)
		})

		When("bill exists", func() {
			BeforeEach(func() {
				billID = "test-id"
				testBill := &Bill{
					ID:           "test-id",
					Title:        "회식",
					Participants: []string{"철수", "영희"},
					Rounds: []Round{{
						Name:     "1차",
						RawLines: []string{"스타벅스", "합계 12,000"},
						Items:    []settle.Item{{Name: "합계", Amount: 12000, IsTotal: true}},
					}},
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveBill(testBill)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct bill title", func() {
				Expect(bill.Title).To(Equal("회식"))
			})

			It("should round-trip the round contents", func() {
				Expect(bill.Rounds).To(HaveLen(1))
				Expect(bill.Rounds[0].RawLines).To(Equal([]string{"스타벅스", "합계 12,000"}))
				Expect(bill.Rounds[0].Items[0].IsTotal).To(BeTrue())
			})
		})

		When("bill does not exist", func() {
			var expectedErr error

			BeforeEach(func() {
				billID = "nonexistent"
				expectedErr = errors.New("bill not found: nonexistent")
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(expectedErr))
			})
		})
	})

	Describe("ListBills", func() {
		var (
			bills []*Bill
			err   error
		)

		JustBeforeEach(func() {
			bills, err = db.ListBills()
		})

		When("bills exist", func() {
			BeforeEach(func() {
				Expect(db.SaveBill(&Bill{ID: "id1", Title: "회식 1"})).NotTo(HaveOccurred())
				Expect(db.SaveBill(&Bill{ID: "id2", Title: "회식 2"})).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all bills", func() {
				Expect(bills).To(HaveLen(2))
			})
		})

		When("no bills exist", func() {
			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(bills).To(BeEmpty())
			})
		})
	})

	Describe("DeleteBill", func() {
		var (
			billID string
			err    error
		)

		JustBeforeEach(func() {
			err = db.DeleteBill(billID)
		})

		When("bill exists", func() {
			BeforeEach(func() {
				billID = "test-id"
				Expect(db.SaveBill(&Bill{ID: "test-id", Title: "회식"})).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the bill from the database", func() {
				_, getErr := db.GetBill("test-id")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("bill does not exist", func() {
			BeforeEach(func() {
				billID = "nonexistent"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			Expect(db.Close()).NotTo(HaveOccurred())
		})
	})
})
